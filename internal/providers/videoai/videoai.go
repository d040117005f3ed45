package videoai

import (
	"context"
	"time"

	"server/internal/domain"
	"server/internal/providers/transport"
)

// Registered AI video provider names.
const (
	ProviderVeo   = "veo"
	ProviderKling = "kling"
)

// Request asks for one generated clip from a visual prompt.
type Request struct {
	JobID       string
	UserID      string
	Prompt      string
	DurationSec int
}

// Generator is the contract implemented by all AI video providers.
type Generator interface {
	GenerateVideo(ctx context.Context, req Request) (*domain.VideoAIArtifact, *transport.Error)
}

// Factory binds a vendor adapter to one job's credential and config.
type Factory func(cred domain.ProviderCredential, cfg domain.VideoAIConfig) Generator

// AI video vendors are asynchronous: submit, then poll. The poll cadence is
// coarse because renders take minutes, not seconds.
const pollInterval = 10 * time.Second

// pollUntil invokes check on a fixed cadence until it reports done or the
// step context expires.
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
