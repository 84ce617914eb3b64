package retrieval

import (
	"strings"
	"unicode/utf8"
)

const (
	TruncationMarker = "...\n\n[Context truncated for length]"
	blockSeparator   = "\n\n---\n\n"
	defaultSection   = "main"
)

// Assembler renders ranked chunks into a bounded prompt context.
type Assembler struct {
	budget int
}

// NewAssembler creates an assembler with a rune budget. A zero budget disables
// truncation; a budget shorter than the marker is raised to the marker length.
func NewAssembler(budget int) *Assembler {
	if budget < 0 {
		budget = 0
	}
	if markerLen := utf8.RuneCountInString(TruncationMarker); budget > 0 && budget < markerLen {
		budget = markerLen
	}
	return &Assembler{budget: budget}
}

type Assembled struct {
	Context       string
	Sources       []string
	TopicAreas    []string
	DocumentTypes []string
	Truncated     bool
}

type sourceGroup struct {
	key      string
	sections []string
	bySec    map[string][]SearchResult
}

func (a *Assembler) Assemble(results []SearchResult) Assembled {
	var groups []*sourceGroup
	index := make(map[string]*sourceGroup)
	for _, r := range results {
		key := SourceKey(r)
		g, ok := index[key]
		if !ok {
			g = &sourceGroup{key: key, bySec: make(map[string][]SearchResult)}
			index[key] = g
			groups = append(groups, g)
		}
		section := strings.TrimSpace(r.Chunk.Metadata.Section)
		if section == "" {
			section = defaultSection
		}
		if _, ok := g.bySec[section]; !ok {
			g.sections = append(g.sections, section)
		}
		g.bySec[section] = append(g.bySec[section], r)
	}

	blocks := make([]string, 0, len(groups))
	for _, g := range groups {
		blocks = append(blocks, renderBlock(g))
	}
	sources, topics, types := CollectMetadata(results)
	out := Assembled{
		Context:       strings.Join(blocks, blockSeparator),
		Sources:       sources,
		TopicAreas:    topics,
		DocumentTypes: types,
	}
	out.Context, out.Truncated = a.truncate(out.Context)
	return out
}

func renderBlock(g *sourceGroup) string {
	first := g.bySec[g.sections[0]][0].Chunk.Metadata
	var sb strings.Builder
	sb.WriteString("Source: ")
	sb.WriteString(g.key)
	if first.Title != "" {
		sb.WriteString(" (" + first.Title + ")")
	}
	if first.Professor != "" {
		sb.WriteString(" by " + first.Professor)
	}
	if first.Date != "" {
		sb.WriteString(" - " + first.Date)
	}
	if first.DocumentType != "" {
		sb.WriteString(" [" + first.DocumentType + "]")
	}
	sb.WriteString("\n")
	for i, section := range g.sections {
		if section != defaultSection {
			sb.WriteString("\nSection: " + section + "\n")
		} else if i > 0 {
			sb.WriteString("\n\n")
		}
		texts := make([]string, 0, len(g.bySec[section]))
		for _, r := range g.bySec[section] {
			texts = append(texts, strings.TrimSpace(r.Chunk.Content))
		}
		sb.WriteString(strings.Join(texts, "\n\n"))
	}
	return sb.String()
}

func (a *Assembler) truncate(text string) (string, bool) {
	if a.budget <= 0 || utf8.RuneCountInString(text) <= a.budget {
		return text, false
	}
	keep := a.budget - utf8.RuneCountInString(TruncationMarker)
	runes := []rune(text)
	return string(runes[:keep]) + TruncationMarker, true
}

// SourceKey identifies the origin of a chunk as "<course code> - <professor>",
// falling back to the stored source label and then the document id.
func SourceKey(r SearchResult) string {
	m := r.Chunk.Metadata
	parts := make([]string, 0, 2)
	if c := strings.TrimSpace(m.CourseCode); c != "" {
		parts = append(parts, c)
	}
	if p := strings.TrimSpace(m.Professor); p != "" {
		parts = append(parts, p)
	}
	if len(parts) > 0 {
		return strings.Join(parts, " - ")
	}
	if s := strings.TrimSpace(m.Source); s != "" {
		return s
	}
	return r.Chunk.DocumentID
}

// CollectMetadata lists distinct source keys, topics and document types in
// first-appearance order, skipping empty values.
func CollectMetadata(results []SearchResult) (sources, topics, types []string) {
	sources = []string{}
	topics = []string{}
	types = []string{}
	seenSource := map[string]struct{}{}
	seenTopic := map[string]struct{}{}
	seenType := map[string]struct{}{}
	for _, r := range results {
		sources = appendDistinct(sources, seenSource, SourceKey(r))
		topics = appendDistinct(topics, seenTopic, strings.TrimSpace(r.Chunk.Metadata.Topic))
		types = appendDistinct(types, seenType, strings.TrimSpace(r.Chunk.Metadata.DocumentType))
	}
	return sources, topics, types
}

func appendDistinct(list []string, seen map[string]struct{}, v string) []string {
	if v == "" {
		return list
	}
	if _, ok := seen[v]; ok {
		return list
	}
	seen[v] = struct{}{}
	return append(list, v)
}
