package quiz

import (
	"fmt"
	"strings"

	"github.com/xxxsen/studymate/internal/retrieval"
)

const (
	contextHeader    = "DIVERSE COURSE MATERIAL SOURCES:\n\n"
	sourceTerminator = "\n\n--- END SOURCE ---\n\n"
)

// BuildContext renders the selected chunks as numbered sources so generated
// questions can cite them. It returns the context and the number of sources.
func BuildContext(pool []retrieval.SearchResult, indices []int) (string, int) {
	blocks := make([]string, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(pool) {
			continue
		}
		r := pool[idx]
		label := retrieval.SourceKey(r)
		if label == "" {
			label = fmt.Sprintf("Source %d", len(blocks)+1)
		}
		blocks = append(blocks, fmt.Sprintf("--- SOURCE %d: %s ---\n%s", len(blocks)+1, label, strings.TrimSpace(r.Chunk.Content)))
	}
	if len(blocks) == 0 {
		return "", 0
	}
	return contextHeader + strings.Join(blocks, sourceTerminator), len(blocks)
}
