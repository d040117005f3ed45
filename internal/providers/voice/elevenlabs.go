package voice

import (
	"context"
	"fmt"
	"net/http"

	"server/internal/domain"
	"server/internal/providers/transport"
)

const elevenLabsBaseURL = "https://api.elevenlabs.io/v1"

// Stock voices used when the user has not picked one.
var elevenLabsDefaultVoices = map[string]string{
	"male":    "TxGEqnHWrfWFTfGW9XjX",
	"female":  "EXAVITQu4vr4xnSDxMaL",
	"neutral": "21m00Tcm4TlvDq8ikWAM",
}

type elevenLabsRequest struct {
	Text          string             `json:"text"`
	ModelID       string             `json:"model_id"`
	VoiceSettings elevenLabsSettings `json:"voice_settings"`
}

type elevenLabsSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// ElevenLabs synthesizes narration via the text-to-speech endpoint, which
// answers with raw MP3 bytes.
type ElevenLabs struct {
	caller *transport.Caller
	cred   domain.ProviderCredential
	cfg    domain.VoiceConfig
}

// NewElevenLabsFactory returns the per-job constructor for the ElevenLabs adapter.
func NewElevenLabsFactory(caller *transport.Caller) Factory {
	return func(cred domain.ProviderCredential, cfg domain.VoiceConfig) Generator {
		return &ElevenLabs{caller: caller, cred: cred, cfg: cfg}
	}
}

func (g *ElevenLabs) GenerateVoice(ctx context.Context, req Request) (*Result, *transport.Error) {
	voiceID := g.cfg.VoiceID
	if voiceID == "" {
		voiceID = elevenLabsDefaultVoices[g.cfg.Gender]
	}
	if voiceID == "" {
		voiceID = elevenLabsDefaultVoices["neutral"]
	}

	payload := elevenLabsRequest{
		Text:    req.Text,
		ModelID: "eleven_multilingual_v2",
		VoiceSettings: elevenLabsSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Speed:           g.cfg.Speed,
		},
	}

	audio, cerr := g.caller.Do(ctx, transport.Call{
		Provider: ProviderElevenLabs,
		JobID:    req.JobID,
		Step:     domain.StepVoice,
		Method:   http.MethodPost,
		URL:      fmt.Sprintf("%s/text-to-speech/%s", elevenLabsBaseURL, voiceID),
		Header:   map[string]string{"xi-api-key": g.cred.APIKey, "Accept": "audio/mpeg"},
		Body:     payload,
		Secrets:  []string{g.cred.APIKey},
	})
	if cerr != nil {
		return nil, cerr
	}
	if len(audio) == 0 {
		return nil, &transport.Error{Provider: ProviderElevenLabs, Code: transport.CodeUnknown, Message: "empty audio response"}
	}
	return &Result{Audio: audio, Format: "mp3"}, nil
}

var _ Generator = (*ElevenLabs)(nil)
