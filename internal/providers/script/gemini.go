package script

import (
	"context"
	"fmt"
	"net/http"

	"server/internal/domain"
	"server/internal/providers/transport"
)

const (
	geminiBaseURL      = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel = "gemini-2.0-flash"
)

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenConfig struct {
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
	Temperature      float64 `json:"temperature,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Gemini generates scripts through the generateContent endpoint.
type Gemini struct {
	caller *transport.Caller
	cred   domain.ProviderCredential
	cfg    domain.ScriptConfig
	model  string
}

// NewGeminiFactory returns the per-job constructor for the Gemini adapter.
func NewGeminiFactory(caller *transport.Caller) Factory {
	return func(cred domain.ProviderCredential, cfg domain.ScriptConfig) Generator {
		model := cred.Extra["model"]
		if model == "" {
			model = defaultGeminiModel
		}
		return &Gemini{caller: caller, cred: cred, cfg: cfg, model: model}
	}
}

func (g *Gemini) GenerateScript(ctx context.Context, req Request) (*domain.ScriptArtifact, *transport.Error) {
	payload := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: instructions(req, g.cfg)}}},
		},
		GenerationConfig: geminiGenConfig{ResponseMimeType: "application/json", Temperature: 0.7},
	}

	var out geminiResponse
	// Gemini carries the key in the query string, so the URL must be masked.
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", geminiBaseURL, g.model, g.cred.APIKey)
	cerr := g.caller.DoJSON(ctx, transport.Call{
		Provider: ProviderGemini,
		JobID:    req.JobID,
		Step:     domain.StepScript,
		Method:   http.MethodPost,
		URL:      url,
		Body:     payload,
		Secrets:  []string{g.cred.APIKey},
	}, &out)
	if cerr != nil {
		return nil, cerr
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return nil, &transport.Error{Provider: ProviderGemini, Code: transport.CodeUnknown, Message: "empty candidates"}
	}
	return parseScript(ProviderGemini, out.Candidates[0].Content.Parts[0].Text)
}

var _ Generator = (*Gemini)(nil)
