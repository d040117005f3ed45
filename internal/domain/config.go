package domain

import "fmt"

// PipelineConfig is the per-job, per-category configuration. It is validated
// once at job creation; adapters receive their own section with named typed
// fields instead of digging through a loose JSON blob.
type PipelineConfig struct {
	Version  int            `json:"version"`
	Script   ScriptConfig   `json:"script"`
	Voice    VoiceConfig    `json:"voice"`
	Media    MediaConfig    `json:"media"`
	VideoAI  VideoAIConfig  `json:"video_ai"`
	Assembly AssemblyConfig `json:"assembly"`
}

// PipelineConfigVersion marks the current config schema.
const PipelineConfigVersion = 1

type ScriptConfig struct {
	Tone     string `json:"tone"`
	Language string `json:"language"`
}

type VoiceConfig struct {
	Gender  string  `json:"gender"`
	Speed   float64 `json:"speed"`
	VoiceID string  `json:"voice_id,omitempty"`
}

type MediaConfig struct {
	Orientation    string `json:"orientation"`
	AssetsPerScene int    `json:"assets_per_scene"`
}

type VideoAIConfig struct {
	AspectRatio string `json:"aspect_ratio"`
	Style       string `json:"style,omitempty"`
}

type AssemblyConfig struct {
	Resolution    string `json:"resolution"`
	SubtitleStyle string `json:"subtitle_style"`
	BurnSubtitles bool   `json:"burn_subtitles"`
}

// DefaultPipelineConfig returns the documented defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Version:  PipelineConfigVersion,
		Script:   ScriptConfig{Tone: "engaging", Language: "en"},
		Voice:    VoiceConfig{Gender: "neutral", Speed: 1.0},
		Media:    MediaConfig{Orientation: "portrait", AssetsPerScene: 1},
		VideoAI:  VideoAIConfig{AspectRatio: "9:16"},
		Assembly: AssemblyConfig{Resolution: "1080x1920", SubtitleStyle: "default", BurnSubtitles: true},
	}
}

var (
	validGenders      = map[string]bool{"male": true, "female": true, "neutral": true}
	validOrientations = map[string]bool{"portrait": true, "landscape": true, "square": true}
	validAspects      = map[string]bool{"9:16": true, "16:9": true, "1:1": true}
)

// Validate checks the config once, up front. Adapters may assume a valid
// config afterwards.
func (c PipelineConfig) Validate() error {
	if c.Version != PipelineConfigVersion {
		return fmt.Errorf("pipeline config: unsupported version %d", c.Version)
	}
	if !validGenders[c.Voice.Gender] {
		return fmt.Errorf("pipeline config: voice gender %q is not one of male, female, neutral", c.Voice.Gender)
	}
	if c.Voice.Speed < 0.5 || c.Voice.Speed > 2.0 {
		return fmt.Errorf("pipeline config: voice speed %.2f outside [0.5, 2.0]", c.Voice.Speed)
	}
	if !validOrientations[c.Media.Orientation] {
		return fmt.Errorf("pipeline config: media orientation %q is not one of portrait, landscape, square", c.Media.Orientation)
	}
	if c.Media.AssetsPerScene < 1 || c.Media.AssetsPerScene > 5 {
		return fmt.Errorf("pipeline config: assets per scene %d outside [1, 5]", c.Media.AssetsPerScene)
	}
	if !validAspects[c.VideoAI.AspectRatio] {
		return fmt.Errorf("pipeline config: aspect ratio %q is not one of 9:16, 16:9, 1:1", c.VideoAI.AspectRatio)
	}
	if c.Assembly.Resolution == "" {
		return fmt.Errorf("pipeline config: assembly resolution is required")
	}
	return nil
}
