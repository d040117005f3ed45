package voice

import (
	"context"
	"net/http"

	"server/internal/domain"
	"server/internal/providers/transport"
)

const openAIBaseURL = "https://api.openai.com/v1"

var openAIVoiceByGender = map[string]string{
	"male":    "onyx",
	"female":  "nova",
	"neutral": "alloy",
}

type openAISpeechRequest struct {
	Model string  `json:"model"`
	Input string  `json:"input"`
	Voice string  `json:"voice"`
	Speed float64 `json:"speed,omitempty"`
}

// OpenAI synthesizes narration via the audio/speech endpoint.
type OpenAI struct {
	caller *transport.Caller
	cred   domain.ProviderCredential
	cfg    domain.VoiceConfig
}

// NewOpenAIFactory returns the per-job constructor for the OpenAI TTS adapter.
func NewOpenAIFactory(caller *transport.Caller) Factory {
	return func(cred domain.ProviderCredential, cfg domain.VoiceConfig) Generator {
		return &OpenAI{caller: caller, cred: cred, cfg: cfg}
	}
}

func (g *OpenAI) GenerateVoice(ctx context.Context, req Request) (*Result, *transport.Error) {
	voice := g.cfg.VoiceID
	if voice == "" {
		voice = openAIVoiceByGender[g.cfg.Gender]
	}
	if voice == "" {
		voice = "alloy"
	}

	audio, cerr := g.caller.Do(ctx, transport.Call{
		Provider: ProviderOpenAI,
		JobID:    req.JobID,
		Step:     domain.StepVoice,
		Method:   http.MethodPost,
		URL:      openAIBaseURL + "/audio/speech",
		Header:   map[string]string{"Authorization": "Bearer " + g.cred.APIKey},
		Body: openAISpeechRequest{
			Model: "tts-1",
			Input: req.Text,
			Voice: voice,
			Speed: g.cfg.Speed,
		},
		Secrets: []string{g.cred.APIKey},
	})
	if cerr != nil {
		return nil, cerr
	}
	if len(audio) == 0 {
		return nil, &transport.Error{Provider: ProviderOpenAI, Code: transport.CodeUnknown, Message: "empty audio response"}
	}
	return &Result{Audio: audio, Format: "mp3"}, nil
}

var _ Generator = (*OpenAI)(nil)
