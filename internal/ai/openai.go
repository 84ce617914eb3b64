package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// openAIConfig also covers self-hosted OpenAI-compatible embedding servers.
type openAIConfig struct {
	APIKey       string `json:"api_key"`
	BaseURL      string `json:"base_url"`
	AllowNoKey   bool   `json:"allow_no_key"`
	Dimensions   int    `json:"dimensions"`
	InputPrefix  string `json:"input_prefix"`
	QueryPrefix  string `json:"query_prefix"`
	RequestLabel string `json:"request_label"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []chatMsg `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float32  `json:"temperature,omitempty"`
	TopP        *float32  `json:"top_p,omitempty"`
	TopK        *float32  `json:"top_k,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openAIEmbedRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func newChatRequest(model, prompt string, opts GenerateOptions, withTopK bool) chatRequest {
	req := chatRequest{
		Model:     model,
		Messages:  []chatMsg{{Role: "user", Content: prompt}},
		MaxTokens: opts.MaxOutputTokens,
	}
	if opts.Temperature > 0 {
		v := opts.Temperature
		req.Temperature = &v
	}
	if opts.TopP > 0 {
		v := opts.TopP
		req.TopP = &v
	}
	if withTopK && opts.TopK > 0 {
		v := opts.TopK
		req.TopK = &v
	}
	return req
}

// postJSON sends body to endpoint and decodes a 2xx response into out.
func postJSON(ctx context.Context, label, endpoint string, headers map[string]string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s request failed: %s: %s", label, resp.Status, strings.TrimSpace(string(raw)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type openAIProvider struct {
	apiKey  string
	baseURL string
}

func (p *openAIProvider) Name() string {
	return "openai"
}

func (p *openAIProvider) Generate(ctx context.Context, model string, prompt string, opts GenerateOptions) (string, error) {
	if p.apiKey == "" {
		return "", ErrUnavailable
	}
	var out chatResponse
	endpoint := strings.TrimRight(p.baseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	if err := postJSON(ctx, "openai", endpoint, headers, newChatRequest(model, prompt, opts, false), &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openai response has no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

type openAIEmbedProvider struct {
	apiKey      string
	baseURL     string
	allowNoKey  bool
	dimensions  int
	inputPrefix string
	queryPrefix string
	label       string
}

func (p *openAIEmbedProvider) Name() string {
	return p.label
}

func (p *openAIEmbedProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	if p.apiKey == "" && !p.allowNoKey {
		return nil, ErrUnavailable
	}
	input := p.inputPrefix + text
	if taskType == "RETRIEVAL_QUERY" && p.queryPrefix != "" {
		input = p.queryPrefix + text
	}
	var out openAIEmbedResponse
	endpoint := strings.TrimRight(p.baseURL, "/") + "/embeddings"
	headers := map[string]string{}
	if p.apiKey != "" {
		headers["Authorization"] = "Bearer " + p.apiKey
	}
	body := openAIEmbedRequest{Model: model, Input: input, Dimensions: p.dimensions}
	if err := postJSON(ctx, p.label, endpoint, headers, body, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%s response has no embeddings", p.label)
	}
	return out.Data[0].Embedding, nil
}

func decodeOpenAIConfig(args interface{}) (*openAIConfig, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	if cfg.RequestLabel == "" {
		cfg.RequestLabel = "openai"
	}
	return cfg, nil
}

func createOpenAIFactory(args interface{}) (IAIProvider, error) {
	cfg, err := decodeOpenAIConfig(args)
	if err != nil {
		return nil, err
	}
	return &openAIProvider{apiKey: cfg.APIKey, baseURL: cfg.BaseURL}, nil
}

func createOpenAIEmbedFactory(args interface{}) (IEmbedProvider, error) {
	cfg, err := decodeOpenAIConfig(args)
	if err != nil {
		return nil, err
	}
	return &openAIEmbedProvider{
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		allowNoKey:  cfg.AllowNoKey,
		dimensions:  cfg.Dimensions,
		inputPrefix: cfg.InputPrefix,
		queryPrefix: cfg.QueryPrefix,
		label:       cfg.RequestLabel,
	}, nil
}

func init() {
	Register("openai", createOpenAIFactory)
	RegisterEmbed("openai", createOpenAIEmbedFactory)
}
