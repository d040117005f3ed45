package script

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"server/internal/domain"
	"server/internal/providers/transport"
)

// Registered script provider names.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Request carries everything a script vendor needs for one job.
type Request struct {
	JobID             string
	UserID            string
	Prompt            string
	TemplateID        string
	TargetDurationSec int
}

// Generator is the contract implemented by all script providers.
type Generator interface {
	GenerateScript(ctx context.Context, req Request) (*domain.ScriptArtifact, *transport.Error)
}

// Factory binds a vendor adapter to one job's credential and config.
type Factory func(cred domain.ProviderCredential, cfg domain.ScriptConfig) Generator

// All vendors are instructed to answer with this JSON shape.
type modelScriptPayload struct {
	Hook   string `json:"hook"`
	Scenes []struct {
		Narration    string  `json:"narration"`
		VisualPrompt string  `json:"visual_prompt"`
		DurationSec  float64 `json:"duration_sec"`
	} `json:"scenes"`
}

func instructions(req Request, cfg domain.ScriptConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a short-form video script about: %s\n", req.Prompt)
	fmt.Fprintf(&b, "Target duration: %d seconds. Tone: %s. Language: %s.\n", req.TargetDurationSec, cfg.Tone, cfg.Language)
	if req.TemplateID != "" {
		fmt.Fprintf(&b, "Follow template %s.\n", req.TemplateID)
	}
	b.WriteString(`Respond with JSON only: {"hook": string, "scenes": [{"narration": string, "visual_prompt": string, "duration_sec": number}]}`)
	return b.String()
}

func parseScript(provider, text string) (*domain.ScriptArtifact, *transport.Error) {
	text = strings.TrimSpace(text)
	// Some models wrap JSON in a markdown fence despite instructions.
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var payload modelScriptPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &payload); err != nil {
		return nil, transport.Unknown(provider, fmt.Errorf("parse script payload: %w", err))
	}
	if len(payload.Scenes) == 0 {
		return nil, transport.Unknown(provider, fmt.Errorf("script payload has no scenes"))
	}

	artifact := &domain.ScriptArtifact{Hook: payload.Hook}
	var narration []string
	for _, s := range payload.Scenes {
		artifact.Scenes = append(artifact.Scenes, domain.Scene{
			Narration:    s.Narration,
			VisualPrompt: s.VisualPrompt,
			DurationSec:  s.DurationSec,
		})
		narration = append(narration, s.Narration)
	}
	artifact.Text = strings.Join(narration, " ")
	return artifact, nil
}
