package domain

import "fmt"

// Scene is one narrated beat of the script with its visual direction.
type Scene struct {
	Narration    string  `json:"narration"`
	VisualPrompt string  `json:"visual_prompt"`
	DurationSec  float64 `json:"duration_sec"`
}

// ScriptArtifact is the output of the script step.
type ScriptArtifact struct {
	Text   string  `json:"text"`
	Hook   string  `json:"hook,omitempty"`
	Scenes []Scene `json:"scenes"`
}

// VoiceArtifact is the output of the voice step. AudioKey points at the
// stored narration track; the raw bytes are not kept on the job row.
// AudioURL is the publicly reachable form handed to the assembler.
type VoiceArtifact struct {
	AudioKey    string  `json:"audio_key"`
	AudioURL    string  `json:"audio_url"`
	Format      string  `json:"format"`
	DurationSec float64 `json:"duration_sec,omitempty"`
}

// MediaAsset is one stock clip or photo selected for a scene.
type MediaAsset struct {
	URL        string `json:"url"`
	Kind       string `json:"kind"` // "video" or "photo"
	SceneIndex int    `json:"scene_index"`
	Credit     string `json:"credit,omitempty"`
}

// MediaArtifact is the output of the media step.
type MediaArtifact struct {
	Assets []MediaAsset `json:"assets"`
}

// VideoAIArtifact is the output of the AI video step.
type VideoAIArtifact struct {
	ClipURL      string `json:"clip_url"`
	ProviderRef  string `json:"provider_ref,omitempty"`
	DurationSec  int    `json:"duration_sec,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// AssemblyArtifact is the output of the final assembly step.
type AssemblyArtifact struct {
	VideoURL    string `json:"video_url"`
	SubtitleURL string `json:"subtitle_url,omitempty"`
}

// Artifacts accumulates step outputs over the job's lifetime. Outputs from
// steps before a failure point are deliberately retained so a retry does not
// re-pay a provider for work that already succeeded.
type Artifacts struct {
	Script   *ScriptArtifact   `json:"script,omitempty"`
	Voice    *VoiceArtifact    `json:"voice,omitempty"`
	Media    *MediaArtifact    `json:"media,omitempty"`
	VideoAI  *VideoAIArtifact  `json:"video_ai,omitempty"`
	Assembly *AssemblyArtifact `json:"assembly,omitempty"`
}

// Has reports whether the step already produced its artifact.
func (a Artifacts) Has(step Step) bool {
	switch step {
	case StepScript:
		return a.Script != nil
	case StepVoice:
		return a.Voice != nil
	case StepMedia:
		return a.Media != nil
	case StepVideoAI:
		return a.VideoAI != nil
	case StepAssembly:
		return a.Assembly != nil
	}
	return false
}

// Merge stores the output of one step. The payload type must match the step.
func (a *Artifacts) Merge(step Step, payload any) error {
	switch step {
	case StepScript:
		v, ok := payload.(*ScriptArtifact)
		if !ok {
			return fmt.Errorf("artifact for %s: unexpected type %T", step, payload)
		}
		a.Script = v
	case StepVoice:
		v, ok := payload.(*VoiceArtifact)
		if !ok {
			return fmt.Errorf("artifact for %s: unexpected type %T", step, payload)
		}
		a.Voice = v
	case StepMedia:
		v, ok := payload.(*MediaArtifact)
		if !ok {
			return fmt.Errorf("artifact for %s: unexpected type %T", step, payload)
		}
		a.Media = v
	case StepVideoAI:
		v, ok := payload.(*VideoAIArtifact)
		if !ok {
			return fmt.Errorf("artifact for %s: unexpected type %T", step, payload)
		}
		a.VideoAI = v
	case StepAssembly:
		v, ok := payload.(*AssemblyArtifact)
		if !ok {
			return fmt.Errorf("artifact for %s: unexpected type %T", step, payload)
		}
		a.Assembly = v
	default:
		return fmt.Errorf("artifact for unknown step %q", step)
	}
	return nil
}
