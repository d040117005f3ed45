package media

import (
	"context"

	"server/internal/domain"
	"server/internal/providers/transport"
)

// Registered media provider names.
const (
	ProviderPexels  = "pexels"
	ProviderPixabay = "pixabay"
)

// Request asks for stock footage matching each scene's visual prompt.
type Request struct {
	JobID  string
	UserID string
	Scenes []domain.Scene
}

// Generator is the contract implemented by all stock media providers.
type Generator interface {
	FetchMedia(ctx context.Context, req Request) (*domain.MediaArtifact, *transport.Error)
}

// Factory binds a vendor adapter to one job's credential and config.
type Factory func(cred domain.ProviderCredential, cfg domain.MediaConfig) Generator
