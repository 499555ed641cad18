package ports

import (
	"github.com/rendis/flowdesigner/pkg/schema"
)

const (
	switchCasesProp   = "cases"
	switchLabelField  = "label"
	switchActivityKey = "activity"
	switchDefaultProp = "default"
)

// SwitchPortProvider handles Elsa.Switch: one embedded port per case, in case
// order, followed by the embedded Default port.
type SwitchPortProvider struct {
	activityType string
}

// NewSwitchPortProvider creates the provider for Elsa.Switch.
func NewSwitchPortProvider() *SwitchPortProvider {
	return &SwitchPortProvider{activityType: "Elsa.Switch"}
}

func (p *SwitchPortProvider) Supports(activityType string) bool { return activityType == p.activityType }
func (p *SwitchPortProvider) Priority() int                     { return 0 }

func (p *SwitchPortProvider) GetPorts(activity *schema.Activity, _ *schema.ActivityDescriptor) ([]schema.Port, error) {
	cases := listItems(activity, switchCasesProp)
	out := make([]schema.Port, 0, len(cases)+1)
	for _, c := range cases {
		label := scalarString(c[switchLabelField])
		out = append(out, schema.Port{Name: label, DisplayName: label, Kind: schema.PortKindEmbedded})
	}
	out = append(out, schema.Port{Name: PortDefault, DisplayName: PortDefault, Kind: schema.PortKindEmbedded})
	return out, nil
}

func (p *SwitchPortProvider) ResolvePort(portName string, activity *schema.Activity) *schema.Activity {
	if portName == PortDefault {
		return activity.ActivityProp(switchDefaultProp)
	}
	return schema.ActivityField(findItem(activity, switchCasesProp, switchLabelField, portName), switchActivityKey)
}

func (p *SwitchPortProvider) AssignPort(portName string, child, container *schema.Activity) {
	if portName == PortDefault {
		container.SetActivityProp(switchDefaultProp, child)
		return
	}
	if c := findItem(container, switchCasesProp, switchLabelField, portName); c != nil {
		c[switchActivityKey] = child
	}
}

func (p *SwitchPortProvider) ClearPort(portName string, container *schema.Activity) {
	if portName == PortDefault {
		container.DeleteProp(switchDefaultProp)
		return
	}
	if c := findItem(container, switchCasesProp, switchLabelField, portName); c != nil {
		delete(c, switchActivityKey)
	}
}

// FlowSwitchPortProvider handles Elsa.FlowSwitch: one flow port per case
// followed by the flow Default port. Flow ports hold no activities, so the
// resolve/assign/clear operations are no-ops.
type FlowSwitchPortProvider struct {
	activityType string
}

// NewFlowSwitchPortProvider creates the provider for Elsa.FlowSwitch.
func NewFlowSwitchPortProvider() *FlowSwitchPortProvider {
	return &FlowSwitchPortProvider{activityType: "Elsa.FlowSwitch"}
}

func (p *FlowSwitchPortProvider) Supports(activityType string) bool { return activityType == p.activityType }
func (p *FlowSwitchPortProvider) Priority() int                     { return 0 }

func (p *FlowSwitchPortProvider) GetPorts(activity *schema.Activity, _ *schema.ActivityDescriptor) ([]schema.Port, error) {
	cases := listItems(activity, switchCasesProp)
	out := make([]schema.Port, 0, len(cases)+1)
	for _, c := range cases {
		label := scalarString(c[switchLabelField])
		out = append(out, schema.Port{Name: label, DisplayName: label, Kind: schema.PortKindFlow})
	}
	out = append(out, schema.Port{Name: PortDefault, DisplayName: PortDefault, Kind: schema.PortKindFlow})
	return out, nil
}

func (p *FlowSwitchPortProvider) ResolvePort(string, *schema.Activity) *schema.Activity { return nil }
func (p *FlowSwitchPortProvider) AssignPort(string, *schema.Activity, *schema.Activity) {}
func (p *FlowSwitchPortProvider) ClearPort(string, *schema.Activity)                    {}

var (
	_ PortProvider = (*SwitchPortProvider)(nil)
	_ PortProvider = (*FlowSwitchPortProvider)(nil)
)
