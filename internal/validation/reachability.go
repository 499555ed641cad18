package validation

import (
	"fmt"

	"github.com/rendis/flowdesigner/pkg/schema"
)

// checkReachability warns about activities that no start activity can reach.
// A start activity has no inbound connection from another activity.
// Flowcharts may loop, so cycles are fine as long as something enters them.
func checkReachability(fc *schema.Flowchart, path string) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if len(fc.Activities) < 2 {
		return result
	}

	ids := make(map[string]bool, len(fc.Activities))
	for _, a := range fc.Activities {
		ids[a.ID] = true
	}

	next := make(map[string][]string, len(ids))
	inbound := make(map[string]int, len(ids))
	for _, c := range fc.Connections {
		if !ids[c.Source] || !ids[c.Target] || c.Source == c.Target {
			continue // dangling links are reported elsewhere; self loops do not enter
		}
		next[c.Source] = append(next[c.Source], c.Target)
		inbound[c.Target]++
	}

	queue := make([]string, 0, len(ids))
	reachable := make(map[string]bool, len(ids))
	for _, a := range fc.Activities {
		if inbound[a.ID] == 0 && !reachable[a.ID] {
			reachable[a.ID] = true
			queue = append(queue, a.ID)
		}
	}
	if len(queue) == 0 {
		result.AddWarning(path, schema.ErrCodeValidation,
			"flowchart has no start activity: every activity has an inbound connection")
		return result
	}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, to := range next[node] {
			if !reachable[to] {
				reachable[to] = true
				queue = append(queue, to)
			}
		}
	}

	for i, a := range fc.Activities {
		if !reachable[a.ID] {
			result.AddActivityWarning(fmt.Sprintf("%s.activities[%d]", path, i), a.ID,
				schema.ErrCodeValidation,
				fmt.Sprintf("activity %q is unreachable from any start activity", a.ID))
		}
	}
	return result
}
