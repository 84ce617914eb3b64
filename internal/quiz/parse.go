package quiz

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/xxxsen/studymate/internal/model"
)

var smartQuotes = strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'")

// flexString accepts strings, booleans and numbers. Models often answer
// true/false questions with a bare boolean.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexString(strconv.FormatBool(b))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	if string(data) == "null" {
		*f = ""
		return nil
	}
	return fmt.Errorf("unsupported value %s", string(data))
}

type rawQuestion struct {
	QuestionText   string       `json:"questionText"`
	QuestionType   string       `json:"questionType"`
	Options        []flexString `json:"options"`
	CorrectAnswer  flexString   `json:"correctAnswer"`
	CorrectAnswers []flexString `json:"correctAnswers"`
	Explanation    string       `json:"explanation"`
	Points         json.Number  `json:"points"`
	SourceUsed     flexString   `json:"sourceUsed"`
}

type rawBatch struct {
	Questions []rawQuestion `json:"questions"`
}

func (q rawQuestion) toModel() model.Question {
	points, _ := q.Points.Int64()
	return model.Question{
		QuestionText:   strings.TrimSpace(q.QuestionText),
		QuestionType:   strings.TrimSpace(q.QuestionType),
		Options:        flexStrings(q.Options),
		CorrectAnswer:  strings.TrimSpace(string(q.CorrectAnswer)),
		CorrectAnswers: flexStrings(q.CorrectAnswers),
		Explanation:    strings.TrimSpace(q.Explanation),
		Points:         int(points),
		SourceUsed:     strings.TrimSpace(string(q.SourceUsed)),
	}
}

func flexStrings(in []flexString) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		out = append(out, string(v))
	}
	return out
}

// parseQuestions pulls the question batch out of a model response. Malformed
// JSON gets one repair pass before the batch is given up on.
func parseQuestions(output string) ([]model.Question, error) {
	clean := strings.TrimSpace(output)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = smartQuotes.Replace(strings.TrimSpace(clean))
	start := strings.Index(clean, "{")
	if start < 0 {
		return nil, fmt.Errorf("no json object in response")
	}
	candidates := []string{clean[start:]}
	if end := strings.LastIndex(clean, "}"); end > start {
		candidates = []string{clean[start : end+1], clean[start:]}
	}

	var lastErr error
	for _, candidate := range candidates {
		var batch rawBatch
		err := json.Unmarshal([]byte(candidate), &batch)
		if err != nil {
			err = json.Unmarshal([]byte(repairJSON(candidate)), &batch)
		}
		if err != nil {
			lastErr = err
			continue
		}
		out := make([]model.Question, 0, len(batch.Questions))
		for _, q := range batch.Questions {
			out = append(out, q.toModel())
		}
		return out, nil
	}
	return nil, fmt.Errorf("parse questions: %w", lastErr)
}

// repairJSON fixes the usual defects of model-written JSON: comments, trailing
// commas and output cut off before the closing brackets.
func repairJSON(s string) string {
	var (
		sb       strings.Builder
		stack    []byte
		inString bool
		escaped  bool
	)
	sb.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			sb.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
			sb.WriteByte(c)
		case '/':
			if i+1 < len(s) && s[i+1] == '/' {
				for i < len(s) && s[i] != '\n' {
					i++
				}
				if i < len(s) {
					sb.WriteByte('\n')
				}
				continue
			}
			sb.WriteByte(c)
		case ',':
			if next := nextSignificant(s, i+1); next == '}' || next == ']' || next == 0 {
				continue
			}
			sb.WriteByte(c)
		case '{':
			stack = append(stack, '}')
			sb.WriteByte(c)
		case '[':
			stack = append(stack, ']')
			sb.WriteByte(c)
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
	}
	if inString {
		if escaped {
			sb.WriteByte('\\')
		}
		sb.WriteByte('"')
	}
	out := strings.TrimRight(sb.String(), " \t\r\n,:")
	if len(stack) > 0 && stack[len(stack)-1] == '}' {
		out = dropDanglingKey(out)
	}
	var tail strings.Builder
	for i := len(stack) - 1; i >= 0; i-- {
		tail.WriteByte(stack[i])
	}
	return out + tail.String()
}

// nextSignificant returns the next byte from i that is neither whitespace nor
// part of a line comment, or 0 at the end of input.
func nextSignificant(s string, i int) byte {
	for ; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\r', '\n':
			continue
		case '/':
			if i+1 < len(s) && s[i+1] == '/' {
				for i < len(s) && s[i] != '\n' {
					i++
				}
				continue
			}
			return s[i]
		default:
			return s[i]
		}
	}
	return 0
}

// dropDanglingKey removes an object key left without a value by truncation,
// e.g. `{"a": 1, "b"`. s must end inside an object.
func dropDanglingKey(s string) string {
	if !strings.HasSuffix(s, `"`) {
		return s
	}
	open := strings.LastIndex(s[:len(s)-1], `"`)
	if open <= 0 {
		return s
	}
	prev := strings.TrimRight(s[:open], " \t\r\n")
	if strings.HasSuffix(prev, ",") {
		return strings.TrimRight(prev[:len(prev)-1], " \t\r\n")
	}
	if strings.HasSuffix(prev, "{") {
		return prev
	}
	return s
}
