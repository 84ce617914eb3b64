package indexer

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

// Piece is one chunk of document text and the heading it was found under.
type Piece struct {
	Section string
	Content string
}

// Splitter cuts markdown into heading sections and then into overlapping
// windows of at most ChunkSize runes.
type Splitter struct {
	size    int
	overlap int
	md      goldmark.Markdown
}

func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Splitter{size: size, overlap: overlap, md: goldmark.New()}
}

func (s *Splitter) Split(markdown string) []Piece {
	source := []byte(markdown)
	doc := s.md.Parser().Parse(text.NewReader(source))

	var (
		pieces  []Piece
		section string
		parts   []string
	)
	flush := func() {
		body := strings.TrimSpace(strings.Join(parts, "\n\n"))
		parts = nil
		if body == "" {
			return
		}
		for _, window := range splitText(body, s.size, s.overlap) {
			pieces = append(pieces, Piece{Section: section, Content: window})
		}
	}

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		if h, ok := node.(*ast.Heading); ok && h.Level <= 2 {
			flush()
			section = strings.TrimSpace(string(linesOf(h, source)))
			continue
		}
		if txt := strings.TrimSpace(blockText(node, source)); txt != "" {
			parts = append(parts, txt)
		}
	}
	flush()
	return pieces
}

func linesOf(n ast.Node, source []byte) []byte {
	var out []byte
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		out = append(out, seg.Value(source)...)
	}
	return out
}

// blockText returns the raw source lines of a block, descending into
// container blocks such as lists and quotes.
func blockText(n ast.Node, source []byte) string {
	if n.Lines().Len() > 0 {
		return string(linesOf(n, source))
	}
	var parts []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if c.Type() != ast.TypeBlock {
			continue
		}
		if txt := strings.TrimSpace(blockText(c, source)); txt != "" {
			parts = append(parts, txt)
		}
	}
	return strings.Join(parts, "\n")
}

var breakSeparators = []string{"\n\n", "\n", ". ", " "}

// splitText produces windows of at most size runes, each starting overlap
// runes before the previous one ended. Windows end on the nearest paragraph,
// line, sentence or word boundary in their second half when one exists.
func splitText(body string, size, overlap int) []string {
	runes := []rune(body)
	if len(runes) <= size {
		return []string{body}
	}
	var out []string
	start := 0
	for start < len(runes) {
		end := min(start+size, len(runes))
		if end < len(runes) {
			end = breakPoint(runes, start, end)
		}
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			out = append(out, piece)
		}
		if end >= len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

func breakPoint(runes []rune, start, end int) int {
	floor := start + (end-start)/2
	window := string(runes[floor:end])
	for _, sep := range breakSeparators {
		if idx := strings.LastIndex(window, sep); idx >= 0 {
			return floor + len([]rune(window[:idx+len(sep)]))
		}
	}
	return end
}
