package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studymate/internal/ai"
	appErr "github.com/xxxsen/studymate/internal/pkg/errors"
	"github.com/xxxsen/studymate/internal/retrieval"
)

const (
	chatHistoryLimit = 6
	chatTemperature  = 0.3
	chatTopK         = 40
	chatTopP         = 0.95
	chatMaxTokens    = 4096
)

var (
	authorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)according to (?:dr\.? |prof\.? |professor )?(\w+)`),
		regexp.MustCompile(`(?i)by (?:professor|prof\.?|dr\.?) ?(\w+)`),
		regexp.MustCompile(`(?i)\bprof\.? (\w+)`),
		regexp.MustCompile(`(?i)\bdr\.? (\w+)`),
	}
	docKeywords = []string{
		"document", "source", "notes", "reference", "slide", "paper",
		"according to", "by professor", "prof.", "dr.", "professor",
	}
)

type ChatSearcher interface {
	ChatSearch(ctx context.Context, in SearchInput) (*retrieval.Response, error)
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Message   string
	History   []ChatMessage
	Filter    retrieval.Filter
	UserLevel string
}

type ChatResponse struct {
	Answer           string   `json:"answer"`
	Sources          []string `json:"sources"`
	TopicAreas       []string `json:"topic_areas"`
	DocumentTypes    []string `json:"document_types"`
	SearchType       string   `json:"search_type"`
	ContextTruncated bool     `json:"context_truncated"`
}

// ChatService answers questions grounded on retrieved course material.
type ChatService struct {
	search    ChatSearcher
	assembler *retrieval.Assembler
	llm       TextGenerator
}

type TextGenerator interface {
	Generate(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error)
}

func NewChatService(search ChatSearcher, assembler *retrieval.Assembler, llm TextGenerator) *ChatService {
	return &ChatService{search: search, assembler: assembler, llm: llm}
}

func (s *ChatService) Answer(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, fmt.Errorf("message is required: %w", appErr.ErrInvalid)
	}
	logger := logutil.GetLogger(ctx)
	filter := req.Filter
	if filter.Author == "" {
		filter.Author = extractAuthor(message)
	}

	out := &ChatResponse{Sources: []string{}, TopicAreas: []string{}, DocumentTypes: []string{}}
	var material retrieval.Assembled
	resp, err := s.search.ChatSearch(ctx, SearchInput{Query: message, Filter: filter})
	switch {
	case err != nil:
		logger.Warn("chat search failed, answering without context", zap.Error(err))
	case len(resp.Chunks) > 0:
		material = s.assembler.Assemble(resp.Chunks)
		out.Sources = material.Sources
		out.TopicAreas = material.TopicAreas
		out.DocumentTypes = material.DocumentTypes
		out.SearchType = resp.SearchType
		out.ContextTruncated = material.Truncated
	}

	prompt := buildChatPrompt(message, req.History, req.UserLevel, material)
	answer, err := s.llm.Generate(ctx, prompt, ai.GenerateOptions{
		Temperature:     chatTemperature,
		TopK:            chatTopK,
		TopP:            chatTopP,
		MaxOutputTokens: chatMaxTokens,
	})
	if err != nil {
		logger.Error("chat generation failed", zap.Error(err))
		return nil, fmt.Errorf("generate answer: %w: %w", appErr.ErrUnavailable, err)
	}
	out.Answer = answer
	return out, nil
}

// extractAuthor picks a professor name out of phrases like "according to
// Dr. Smith" so the search can prefer that author's notes.
func extractAuthor(message string) string {
	for _, re := range authorPatterns {
		if m := re.FindStringSubmatch(message); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}

func wantsDocuments(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range docKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func buildChatPrompt(message string, history []ChatMessage, level string, material retrieval.Assembled) string {
	if level == "" {
		level = "unspecified"
	}
	var sb strings.Builder
	sb.WriteString("You are an advanced academic assistant.\n")
	sb.WriteString(fmt.Sprintf("The user is at the %s academic level. Tailor explanations, examples and language to that level.\n", level))
	sb.WriteString("Be direct and concise unless the user asks for detail. Use bold text, numbered lists and bullet points for structure.\n")
	sb.WriteString("Wrap every formula, equation or chemical symbol in LaTeX delimiters: $...$ inline and $$...$$ for blocks.\n")

	hasContext := material.Context != ""
	switch {
	case hasContext && wantsDocuments(message):
		sb.WriteString(fmt.Sprintf("\nThe user is asking about specific course documents. Relevant material was found across %d sources covering %s topics from %s document types.\n",
			len(material.Sources), joinOr(material.TopicAreas, "various"), joinOr(material.DocumentTypes, "various")))
		sb.WriteString("You MUST answer from the context below and cite it as \"According to [Source]...\".\n")
		sb.WriteString("\nCONTEXT FROM DOCUMENTS:\n")
		sb.WriteString(material.Context)
		sb.WriteString("\n")
	case hasContext:
		sb.WriteString("\nSome material from the course database may help:\n\n")
		sb.WriteString(material.Context)
		sb.WriteString("\n\nUse it where it helps and draw on general knowledge for the rest.\n")
	default:
		sb.WriteString("Reply conversationally to greetings and general questions. Do not cite documents unless asked.\n")
	}

	if len(history) > chatHistoryLimit {
		history = history[len(history)-chatHistoryLimit:]
	}
	if len(history) > 0 {
		sb.WriteString("\nCONVERSATION SO FAR:\n")
		for _, m := range history {
			content := strings.TrimSpace(m.Content)
			if content == "" {
				continue
			}
			role := strings.ToLower(strings.TrimSpace(m.Role))
			if role == "" {
				role = "user"
			}
			sb.WriteString(role + ": " + content + "\n")
		}
	}
	sb.WriteString("\nuser: " + message + "\nassistant:")
	return sb.String()
}

func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, ", ")
}
