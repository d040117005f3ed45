package script

import (
	"context"
	"net/http"

	"server/internal/domain"
	"server/internal/providers/transport"
)

const (
	openAIBaseURL      = "https://api.openai.com/v1"
	defaultOpenAIModel = "gpt-4o-mini"
)

type openAIChatRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *openAIFormat   `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIFormat struct {
	Type string `json:"type"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// OpenAI generates scripts through the chat completions endpoint.
type OpenAI struct {
	caller *transport.Caller
	cred   domain.ProviderCredential
	cfg    domain.ScriptConfig
	model  string
}

// NewOpenAIFactory returns the per-job constructor for the OpenAI adapter.
func NewOpenAIFactory(caller *transport.Caller) Factory {
	return func(cred domain.ProviderCredential, cfg domain.ScriptConfig) Generator {
		model := cred.Extra["model"]
		if model == "" {
			model = defaultOpenAIModel
		}
		return &OpenAI{caller: caller, cred: cred, cfg: cfg, model: model}
	}
}

func (g *OpenAI) GenerateScript(ctx context.Context, req Request) (*domain.ScriptArtifact, *transport.Error) {
	payload := openAIChatRequest{
		Model:          g.model,
		Temperature:    0.7,
		ResponseFormat: &openAIFormat{Type: "json_object"},
		Messages: []openAIMessage{
			{Role: "system", Content: "You are a short-form video scriptwriter that only responds with valid JSON."},
			{Role: "user", Content: instructions(req, g.cfg)},
		},
	}

	var out openAIChatResponse
	cerr := g.caller.DoJSON(ctx, transport.Call{
		Provider: ProviderOpenAI,
		JobID:    req.JobID,
		Step:     domain.StepScript,
		Method:   http.MethodPost,
		URL:      openAIBaseURL + "/chat/completions",
		Header:   map[string]string{"Authorization": "Bearer " + g.cred.APIKey},
		Body:     payload,
		Secrets:  []string{g.cred.APIKey},
	}, &out)
	if cerr != nil {
		return nil, cerr
	}
	if len(out.Choices) == 0 {
		return nil, &transport.Error{Provider: ProviderOpenAI, Code: transport.CodeUnknown, Message: "empty choices"}
	}
	return parseScript(ProviderOpenAI, out.Choices[0].Message.Content)
}

var _ Generator = (*OpenAI)(nil)
