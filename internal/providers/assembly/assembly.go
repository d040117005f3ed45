package assembly

import (
	"context"
	"time"

	"server/internal/domain"
	"server/internal/providers/transport"
)

// Registered assembly provider names.
const (
	ProviderShotstack  = "shotstack"
	ProviderCreatomate = "creatomate"
)

// Request hands the assembler every artifact produced so far.
type Request struct {
	JobID    string
	UserID   string
	Script   *domain.ScriptArtifact
	AudioURL string
	Media    *domain.MediaArtifact
	AIClip   *domain.VideoAIArtifact
}

// Generator is the contract implemented by all assembly providers.
type Generator interface {
	AssembleVideo(ctx context.Context, req Request) (*domain.AssemblyArtifact, *transport.Error)
}

// Factory binds a vendor adapter to one job's credential and config.
type Factory func(cred domain.ProviderCredential, cfg domain.AssemblyConfig) Generator

const pollInterval = 5 * time.Second

func pollUntil(ctx context.Context, provider string, check func() (bool, *transport.Error)) *transport.Error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return &transport.Error{Provider: provider, Code: transport.CodeServiceUnavailable, Message: "timed out waiting for render: " + ctx.Err().Error()}
		case <-ticker.C:
			done, cerr := check()
			if cerr != nil {
				return cerr
			}
			if done {
				return nil
			}
		}
	}
}

// sceneLength falls back to a watchable default when the script writer did
// not attach timing.
func sceneLength(s domain.Scene) float64 {
	if s.DurationSec > 0 {
		return s.DurationSec
	}
	return 5
}

// assetForScene returns the first stock asset matched to the given scene.
func assetForScene(media *domain.MediaArtifact, sceneIndex int) *domain.MediaAsset {
	if media == nil {
		return nil
	}
	for i := range media.Assets {
		if media.Assets[i].SceneIndex == sceneIndex {
			return &media.Assets[i]
		}
	}
	return nil
}
