package voice

import (
	"context"

	"server/internal/domain"
	"server/internal/providers/transport"
)

// Registered voice provider names.
const (
	ProviderElevenLabs = "elevenlabs"
	ProviderOpenAI     = "openai"
)

// Request carries the narration text for one job.
type Request struct {
	JobID  string
	UserID string
	Text   string
}

// Result is the synthesized narration. The raw bytes are handed back to the
// pipeline, which owns where they get stored. Format is the file extension
// ("mp3"), not a MIME type.
type Result struct {
	Audio       []byte
	Format      string
	DurationSec float64
}

// Generator is the contract implemented by all voice providers.
type Generator interface {
	GenerateVoice(ctx context.Context, req Request) (*Result, *transport.Error)
}

// Factory binds a vendor adapter to one job's credential and config.
type Factory func(cred domain.ProviderCredential, cfg domain.VoiceConfig) Generator
