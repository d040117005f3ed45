package videoai

import (
	"context"
	"fmt"
	"net/http"

	"server/internal/domain"
	"server/internal/providers/transport"
)

const (
	veoBaseURL      = "https://generativelanguage.googleapis.com/v1beta"
	defaultVeoModel = "veo-2.0-generate-001"
)

type veoSubmitRequest struct {
	Instances  []veoInstance `json:"instances"`
	Parameters veoParameters `json:"parameters"`
}

type veoInstance struct {
	Prompt string `json:"prompt"`
}

type veoParameters struct {
	AspectRatio     string `json:"aspectRatio,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
}

type veoOperation struct {
	Name     string `json:"name"`
	Done     bool   `json:"done"`
	Error    *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Response *struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
}

// Veo generates clips through the long-running predict operation: one submit
// call, then polls of the returned operation until it is done.
type Veo struct {
	caller *transport.Caller
	cred   domain.ProviderCredential
	cfg    domain.VideoAIConfig
	model  string
}

// NewVeoFactory returns the per-job constructor for the Veo adapter.
func NewVeoFactory(caller *transport.Caller) Factory {
	return func(cred domain.ProviderCredential, cfg domain.VideoAIConfig) Generator {
		model := cred.Extra["model"]
		if model == "" {
			model = defaultVeoModel
		}
		return &Veo{caller: caller, cred: cred, cfg: cfg, model: model}
	}
}

func (g *Veo) GenerateVideo(ctx context.Context, req Request) (*domain.VideoAIArtifact, *transport.Error) {
	var op veoOperation
	submitURL := fmt.Sprintf("%s/models/%s:predictLongRunning?key=%s", veoBaseURL, g.model, g.cred.APIKey)
	cerr := g.caller.DoJSON(ctx, transport.Call{
		Provider: ProviderVeo,
		JobID:    req.JobID,
		Step:     domain.StepVideoAI,
		Method:   http.MethodPost,
		URL:      submitURL,
		Body: veoSubmitRequest{
			Instances:  []veoInstance{{Prompt: req.Prompt}},
			Parameters: veoParameters{AspectRatio: g.cfg.AspectRatio, DurationSeconds: req.DurationSec},
		},
		Secrets: []string{g.cred.APIKey},
	}, &op)
	if cerr != nil {
		return nil, cerr
	}
	if op.Name == "" {
		return nil, &transport.Error{Provider: ProviderVeo, Code: transport.CodeUnknown, Message: "submit returned no operation name"}
	}
	operationName := op.Name

	cerr = pollUntil(ctx, ProviderVeo, func() (bool, *transport.Error) {
		op = veoOperation{}
		pollErr := g.caller.DoJSON(ctx, transport.Call{
			Provider: ProviderVeo,
			JobID:    req.JobID,
			Step:     domain.StepVideoAI,
			Method:   http.MethodGet,
			URL:      fmt.Sprintf("%s/%s?key=%s", veoBaseURL, operationName, g.cred.APIKey),
			Secrets:  []string{g.cred.APIKey},
		}, &op)
		if pollErr != nil {
			return false, pollErr
		}
		return op.Done, nil
	})
	if cerr != nil {
		return nil, cerr
	}

	if op.Error != nil {
		return nil, &transport.Error{Provider: ProviderVeo, Code: transport.CodeUnknown, Message: op.Error.Message}
	}
	if op.Response == nil || len(op.Response.GenerateVideoResponse.GeneratedSamples) == 0 {
		return nil, &transport.Error{Provider: ProviderVeo, Code: transport.CodeUnknown, Message: "operation finished without samples"}
	}
	return &domain.VideoAIArtifact{
		ClipURL:     op.Response.GenerateVideoResponse.GeneratedSamples[0].Video.URI,
		ProviderRef: operationName,
		DurationSec: req.DurationSec,
	}, nil
}

var _ Generator = (*Veo)(nil)
