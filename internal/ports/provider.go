package ports

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rendis/flowdesigner/pkg/schema"
)

// PortProvider derives the ports of the activity types it supports and owns
// the property-bag layout that stores activities behind embedded ports.
type PortProvider interface {
	// Supports reports whether the provider handles the activity type.
	Supports(activityType string) bool
	// Priority ranks providers that support the same type; higher wins.
	Priority() int
	// GetPorts lists the activity's ports: dynamic ports in source order,
	// then fixed ports in declaration order.
	GetPorts(activity *schema.Activity, descriptor *schema.ActivityDescriptor) ([]schema.Port, error)
	// ResolvePort returns the activity held by an embedded port, or nil when
	// nothing is assigned or the port is unknown.
	ResolvePort(portName string, activity *schema.Activity) *schema.Activity
	// AssignPort stores child behind the named embedded port of container.
	// Unknown port names are ignored.
	AssignPort(portName string, child, container *schema.Activity)
	// ClearPort removes whatever the named embedded port of container holds.
	// Unknown port names are ignored.
	ClearPort(portName string, container *schema.Activity)
}

// Fixed port names shared by several providers.
const (
	PortDefault             = "Default"
	PortUnmatchedStatusCode = "Unmatched status code"
	PortFailedToConnect     = "Failed to connect"
	PortTimeout             = "Timeout"
)

// PropertyName converts a port name to the camelCase property that stores
// its activity: "Unmatched status code" -> "unmatchedStatusCode".
func PropertyName(portName string) string {
	words := strings.FieldsFunc(portName, func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_'
	})
	var b strings.Builder
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		if i == 0 {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(unicode.ToUpper(r))
		}
		b.WriteString(w[size:])
	}
	return b.String()
}

// scalarString renders a JSON scalar (label, status code) as a port name.
func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprint(t)
	}
}

// listItems returns the object items of a list property. Items are the maps
// stored in the bag, so writes through them mutate the activity.
func listItems(a *schema.Activity, prop string) []map[string]any {
	list := a.ListProp(prop)
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// findItem returns the first list item whose field renders as name.
func findItem(a *schema.Activity, prop, field, name string) map[string]any {
	for _, item := range listItems(a, prop) {
		if scalarString(item[field]) == name {
			return item
		}
	}
	return nil
}
