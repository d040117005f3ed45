package providers

import (
	"errors"
	"testing"

	"server/internal/domain"
	"server/internal/providers/transport"
)

func TestRegistryLooksUpKnownProviders(t *testing.T) {
	r := NewRegistry(transport.NewCaller(transport.Options{}))

	if _, err := r.Script("openai"); err != nil {
		t.Errorf("Script(openai) = %v", err)
	}
	if _, err := r.Voice("elevenlabs"); err != nil {
		t.Errorf("Voice(elevenlabs) = %v", err)
	}
	if _, err := r.Media("pixabay"); err != nil {
		t.Errorf("Media(pixabay) = %v", err)
	}
	if _, err := r.VideoAI("kling"); err != nil {
		t.Errorf("VideoAI(kling) = %v", err)
	}
	if _, err := r.Assembly("creatomate"); err != nil {
		t.Errorf("Assembly(creatomate) = %v", err)
	}
}

func TestRegistryRejectsUnknownProvider(t *testing.T) {
	r := NewRegistry(transport.NewCaller(transport.Options{}))

	_, err := r.Voice("karaoke9000")
	if !errors.Is(err, domain.ErrProviderNotRegistered) {
		t.Fatalf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistryKnown(t *testing.T) {
	r := NewRegistry(transport.NewCaller(transport.Options{}))

	cases := []struct {
		category domain.Step
		name     string
		want     bool
	}{
		{domain.StepScript, "gemini", true},
		{domain.StepScript, "elevenlabs", false},
		{domain.StepVoice, "openai", true},
		{domain.StepMedia, "pexels", true},
		{domain.StepVideoAI, "veo", true},
		{domain.StepAssembly, "shotstack", true},
		{domain.StepAssembly, "ffmpeg", false},
		{domain.Step("posting"), "anything", false},
	}
	for _, tc := range cases {
		if got := r.Known(tc.category, tc.name); got != tc.want {
			t.Errorf("Known(%s, %s) = %v, want %v", tc.category, tc.name, got, tc.want)
		}
	}
}
