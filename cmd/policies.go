package cmd

import (
	"fmt"
	"strings"

	"seekplan/internal/scheduler"
)

// parsePolicies splits a comma separated policy list, normalises the names
// and rejects unknown or repeated ones. An empty list selects every policy.
func parsePolicies(list string) ([]string, error) {
	known := make(map[string]bool)
	for _, name := range scheduler.Policies() {
		known[name] = true
	}

	if strings.TrimSpace(list) == "" {
		return scheduler.Policies(), nil
	}

	seen := make(map[string]bool)
	var out []string
	for _, raw := range strings.Split(list, ",") {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		if !known[name] {
			return nil, fmt.Errorf("unknown scheduling policy %q (available: %v)", name, scheduler.Policies())
		}
		if seen[name] {
			return nil, fmt.Errorf("policy %q listed twice", name)
		}
		seen[name] = true
		out = append(out, name)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no scheduling policy selected")
	}
	return out, nil
}
