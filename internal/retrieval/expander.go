package retrieval

import "strings"

const expansionSuffix = "concepts principles examples"

// ExpandQuery returns the base query followed by a topic-broadened variant. The
// course code does not change the output.
func ExpandQuery(base, topic, _ string) []string {
	base = strings.TrimSpace(base)
	if base == "" {
		return nil
	}
	parts := []string{base}
	if t := strings.TrimSpace(topic); t != "" {
		parts = append(parts, t)
	}
	parts = append(parts, expansionSuffix)
	return []string{base, strings.Join(parts, " ")}
}
