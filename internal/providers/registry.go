// Package providers wires the sealed set of vendor adapters behind one
// uniform lookup per category. The tables are built once at startup; an
// unknown (category, name) pair is a configuration error surfaced
// immediately, never something to retry.
package providers

import (
	"fmt"

	"server/internal/domain"
	"server/internal/providers/assembly"
	"server/internal/providers/media"
	"server/internal/providers/script"
	"server/internal/providers/transport"
	"server/internal/providers/videoai"
	"server/internal/providers/voice"
)

// Registry maps (category, provider name) to the vendor factory. Adding a
// vendor means adding one constructor line here, checked at compile time
// against the category's Factory signature.
type Registry struct {
	script   map[string]script.Factory
	voice    map[string]voice.Factory
	media    map[string]media.Factory
	videoAI  map[string]videoai.Factory
	assembly map[string]assembly.Factory
}

// NewRegistry builds the full vendor table over one shared transport caller.
func NewRegistry(caller *transport.Caller) *Registry {
	return &Registry{
		script: map[string]script.Factory{
			script.ProviderOpenAI: script.NewOpenAIFactory(caller),
			script.ProviderGemini: script.NewGeminiFactory(caller),
		},
		voice: map[string]voice.Factory{
			voice.ProviderElevenLabs: voice.NewElevenLabsFactory(caller),
			voice.ProviderOpenAI:     voice.NewOpenAIFactory(caller),
		},
		media: map[string]media.Factory{
			media.ProviderPexels:  media.NewPexelsFactory(caller),
			media.ProviderPixabay: media.NewPixabayFactory(caller),
		},
		videoAI: map[string]videoai.Factory{
			videoai.ProviderVeo:   videoai.NewVeoFactory(caller),
			videoai.ProviderKling: videoai.NewKlingFactory(caller),
		},
		assembly: map[string]assembly.Factory{
			assembly.ProviderShotstack:  assembly.NewShotstackFactory(caller),
			assembly.ProviderCreatomate: assembly.NewCreatomateFactory(caller),
		},
	}
}

func (r *Registry) Script(name string) (script.Factory, error) {
	if f, ok := r.script[name]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("%w: script provider %q", domain.ErrProviderNotRegistered, name)
}

func (r *Registry) Voice(name string) (voice.Factory, error) {
	if f, ok := r.voice[name]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("%w: voice provider %q", domain.ErrProviderNotRegistered, name)
}

func (r *Registry) Media(name string) (media.Factory, error) {
	if f, ok := r.media[name]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("%w: media provider %q", domain.ErrProviderNotRegistered, name)
}

func (r *Registry) VideoAI(name string) (videoai.Factory, error) {
	if f, ok := r.videoAI[name]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("%w: video_ai provider %q", domain.ErrProviderNotRegistered, name)
}

func (r *Registry) Assembly(name string) (assembly.Factory, error) {
	if f, ok := r.assembly[name]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("%w: assembly provider %q", domain.ErrProviderNotRegistered, name)
}

// Known reports whether a provider name is registered for the category.
// The API layer uses it to reject bad selections at job creation.
func (r *Registry) Known(category domain.Step, name string) bool {
	switch category {
	case domain.StepScript:
		_, ok := r.script[name]
		return ok
	case domain.StepVoice:
		_, ok := r.voice[name]
		return ok
	case domain.StepMedia:
		_, ok := r.media[name]
		return ok
	case domain.StepVideoAI:
		_, ok := r.videoAI[name]
		return ok
	case domain.StepAssembly:
		_, ok := r.assembly[name]
		return ok
	}
	return false
}
