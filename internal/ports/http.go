package ports

import (
	"github.com/rendis/flowdesigner/pkg/schema"
)

const (
	statusCodesProp     = "expectedStatusCodes"
	statusCodeField     = "statusCode"
	statusActivityField = "activity"
	unmatchedProp       = "unmatchedStatusCode"
)

// SendHttpRequestPortProvider handles Elsa.SendHttpRequest: one embedded port
// per expected status code, in configured order, then the embedded
// "Unmatched status code" port.
type SendHttpRequestPortProvider struct {
	activityType string
}

// NewSendHttpRequestPortProvider creates the provider for Elsa.SendHttpRequest.
func NewSendHttpRequestPortProvider() *SendHttpRequestPortProvider {
	return &SendHttpRequestPortProvider{activityType: "Elsa.SendHttpRequest"}
}

func (p *SendHttpRequestPortProvider) Supports(activityType string) bool {
	return activityType == p.activityType
}
func (p *SendHttpRequestPortProvider) Priority() int { return 0 }

func (p *SendHttpRequestPortProvider) GetPorts(activity *schema.Activity, _ *schema.ActivityDescriptor) ([]schema.Port, error) {
	cases := listItems(activity, statusCodesProp)
	out := make([]schema.Port, 0, len(cases)+1)
	for _, c := range cases {
		code := scalarString(c[statusCodeField])
		out = append(out, schema.Port{Name: code, DisplayName: code, Kind: schema.PortKindEmbedded})
	}
	out = append(out, schema.Port{Name: PortUnmatchedStatusCode, DisplayName: PortUnmatchedStatusCode, Kind: schema.PortKindEmbedded})
	return out, nil
}

func (p *SendHttpRequestPortProvider) ResolvePort(portName string, activity *schema.Activity) *schema.Activity {
	if portName == PortUnmatchedStatusCode {
		return activity.ActivityProp(unmatchedProp)
	}
	return schema.ActivityField(findItem(activity, statusCodesProp, statusCodeField, portName), statusActivityField)
}

func (p *SendHttpRequestPortProvider) AssignPort(portName string, child, container *schema.Activity) {
	if portName == PortUnmatchedStatusCode {
		container.SetActivityProp(unmatchedProp, child)
		return
	}
	if c := findItem(container, statusCodesProp, statusCodeField, portName); c != nil {
		c[statusActivityField] = child
	}
}

func (p *SendHttpRequestPortProvider) ClearPort(portName string, container *schema.Activity) {
	if portName == PortUnmatchedStatusCode {
		container.DeleteProp(unmatchedProp)
		return
	}
	if c := findItem(container, statusCodesProp, statusCodeField, portName); c != nil {
		delete(c, statusActivityField)
	}
}

// FlowSendHttpRequestPortProvider handles Elsa.FlowSendHttpRequest, whose
// expectedStatusCodes is a plain list of codes. Every code becomes a flow
// port, followed by the fixed "Unmatched status code", "Failed to connect"
// and "Timeout" flow ports.
type FlowSendHttpRequestPortProvider struct {
	activityType string
}

// NewFlowSendHttpRequestPortProvider creates the provider for Elsa.FlowSendHttpRequest.
func NewFlowSendHttpRequestPortProvider() *FlowSendHttpRequestPortProvider {
	return &FlowSendHttpRequestPortProvider{activityType: "Elsa.FlowSendHttpRequest"}
}

func (p *FlowSendHttpRequestPortProvider) Supports(activityType string) bool {
	return activityType == p.activityType
}
func (p *FlowSendHttpRequestPortProvider) Priority() int { return 0 }

var flowHTTPFixedPorts = []string{PortUnmatchedStatusCode, PortFailedToConnect, PortTimeout}

func (p *FlowSendHttpRequestPortProvider) GetPorts(activity *schema.Activity, _ *schema.ActivityDescriptor) ([]schema.Port, error) {
	codes := activity.ListProp(statusCodesProp)
	out := make([]schema.Port, 0, len(codes)+len(flowHTTPFixedPorts))
	for _, c := range codes {
		code := scalarString(c)
		if code == "" {
			continue
		}
		out = append(out, schema.Port{Name: code, DisplayName: code, Kind: schema.PortKindFlow})
	}
	for _, name := range flowHTTPFixedPorts {
		out = append(out, schema.Port{Name: name, DisplayName: name, Kind: schema.PortKindFlow})
	}
	return out, nil
}

func (p *FlowSendHttpRequestPortProvider) ResolvePort(string, *schema.Activity) *schema.Activity {
	return nil
}
func (p *FlowSendHttpRequestPortProvider) AssignPort(string, *schema.Activity, *schema.Activity) {}
func (p *FlowSendHttpRequestPortProvider) ClearPort(string, *schema.Activity)                    {}

var (
	_ PortProvider = (*SendHttpRequestPortProvider)(nil)
	_ PortProvider = (*FlowSendHttpRequestPortProvider)(nil)
)
