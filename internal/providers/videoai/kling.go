package videoai

import (
	"context"
	"fmt"
	"net/http"

	"server/internal/domain"
	"server/internal/providers/transport"
)

const klingBaseURL = "https://api.klingai.com/v1"

type klingSubmitRequest struct {
	ModelName   string `json:"model_name"`
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	Duration    string `json:"duration,omitempty"`
}

type klingTaskResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TaskID     string `json:"task_id"`
		TaskStatus string `json:"task_status"`
		TaskResult struct {
			Videos []struct {
				URL      string `json:"url"`
				Duration string `json:"duration"`
			} `json:"videos"`
		} `json:"task_result"`
	} `json:"data"`
}

// Kling generates clips through the text2video task API: submit a task, poll
// its status until it succeeds or fails.
type Kling struct {
	caller *transport.Caller
	cred   domain.ProviderCredential
	cfg    domain.VideoAIConfig
}

// NewKlingFactory returns the per-job constructor for the Kling adapter.
func NewKlingFactory(caller *transport.Caller) Factory {
	return func(cred domain.ProviderCredential, cfg domain.VideoAIConfig) Generator {
		return &Kling{caller: caller, cred: cred, cfg: cfg}
	}
}

func (g *Kling) GenerateVideo(ctx context.Context, req Request) (*domain.VideoAIArtifact, *transport.Error) {
	var submitted klingTaskResponse
	cerr := g.caller.DoJSON(ctx, transport.Call{
		Provider: ProviderKling,
		JobID:    req.JobID,
		Step:     domain.StepVideoAI,
		Method:   http.MethodPost,
		URL:      klingBaseURL + "/videos/text2video",
		Header:   map[string]string{"Authorization": "Bearer " + g.cred.APIKey},
		Body: klingSubmitRequest{
			ModelName:   "kling-v1",
			Prompt:      req.Prompt,
			AspectRatio: g.cfg.AspectRatio,
			Duration:    fmt.Sprint(req.DurationSec),
		},
		Secrets: []string{g.cred.APIKey},
	}, &submitted)
	if cerr != nil {
		return nil, cerr
	}
	if submitted.Data.TaskID == "" {
		return nil, &transport.Error{Provider: ProviderKling, Code: transport.CodeUnknown, Message: fmt.Sprintf("submit rejected: %s", submitted.Message)}
	}
	taskID := submitted.Data.TaskID

	var task klingTaskResponse
	cerr = pollUntil(ctx, ProviderKling, func() (bool, *transport.Error) {
		task = klingTaskResponse{}
		pollErr := g.caller.DoJSON(ctx, transport.Call{
			Provider: ProviderKling,
			JobID:    req.JobID,
			Step:     domain.StepVideoAI,
			Method:   http.MethodGet,
			URL:      fmt.Sprintf("%s/videos/text2video/%s", klingBaseURL, taskID),
			Header:   map[string]string{"Authorization": "Bearer " + g.cred.APIKey},
			Secrets:  []string{g.cred.APIKey},
		}, &task)
		if pollErr != nil {
			return false, pollErr
		}
		switch task.Data.TaskStatus {
		case "succeed":
			return true, nil
		case "failed":
			return false, &transport.Error{Provider: ProviderKling, Code: transport.CodeUnknown, Message: fmt.Sprintf("task failed: %s", task.Message)}
		default:
			return false, nil
		}
	})
	if cerr != nil {
		return nil, cerr
	}

	if len(task.Data.TaskResult.Videos) == 0 {
		return nil, &transport.Error{Provider: ProviderKling, Code: transport.CodeUnknown, Message: "task finished without videos"}
	}
	return &domain.VideoAIArtifact{
		ClipURL:     task.Data.TaskResult.Videos[0].URL,
		ProviderRef: taskID,
		DurationSec: req.DurationSec,
	}, nil
}

var _ Generator = (*Kling)(nil)
