package assembly

import (
	"context"
	"net/http"

	"server/internal/domain"
	"server/internal/providers/transport"
)

const creatomateBaseURL = "https://api.creatomate.com/v1"

type creatomateRenderRequest struct {
	Source creatomateSource `json:"source"`
}

type creatomateSource struct {
	OutputFormat string              `json:"output_format"`
	Width        int                 `json:"width,omitempty"`
	Height       int                 `json:"height,omitempty"`
	Elements     []creatomateElement `json:"elements"`
}

type creatomateElement struct {
	Type     string  `json:"type"`
	Source   string  `json:"source,omitempty"`
	Text     string  `json:"text,omitempty"`
	Time     float64 `json:"time"`
	Duration float64 `json:"duration,omitempty"`
}

type creatomateRender struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	URL          string `json:"url"`
	SnapshotURL  string `json:"snapshot_url"`
	ErrorMessage string `json:"error_message"`
}

// Creatomate renders the final video from a source composition built out of
// the accumulated artifacts.
type Creatomate struct {
	caller *transport.Caller
	cred   domain.ProviderCredential
	cfg    domain.AssemblyConfig
}

// NewCreatomateFactory returns the per-job constructor for the Creatomate adapter.
func NewCreatomateFactory(caller *transport.Caller) Factory {
	return func(cred domain.ProviderCredential, cfg domain.AssemblyConfig) Generator {
		return &Creatomate{caller: caller, cred: cred, cfg: cfg}
	}
}

func (g *Creatomate) AssembleVideo(ctx context.Context, req Request) (*domain.AssemblyArtifact, *transport.Error) {
	var submitted []creatomateRender
	cerr := g.caller.DoJSON(ctx, transport.Call{
		Provider: ProviderCreatomate,
		JobID:    req.JobID,
		Step:     domain.StepAssembly,
		Method:   http.MethodPost,
		URL:      creatomateBaseURL + "/renders",
		Header:   map[string]string{"Authorization": "Bearer " + g.cred.APIKey},
		Body:     creatomateRenderRequest{Source: g.buildSource(req)},
		Secrets:  []string{g.cred.APIKey},
	}, &submitted)
	if cerr != nil {
		return nil, cerr
	}
	if len(submitted) == 0 || submitted[0].ID == "" {
		return nil, &transport.Error{Provider: ProviderCreatomate, Code: transport.CodeUnknown, Message: "render submit returned no id"}
	}
	renderID := submitted[0].ID

	var render creatomateRender
	cerr = pollUntil(ctx, ProviderCreatomate, func() (bool, *transport.Error) {
		render = creatomateRender{}
		pollErr := g.caller.DoJSON(ctx, transport.Call{
			Provider: ProviderCreatomate,
			JobID:    req.JobID,
			Step:     domain.StepAssembly,
			Method:   http.MethodGet,
			URL:      creatomateBaseURL + "/renders/" + renderID,
			Header:   map[string]string{"Authorization": "Bearer " + g.cred.APIKey},
			Secrets:  []string{g.cred.APIKey},
		}, &render)
		if pollErr != nil {
			return false, pollErr
		}
		switch render.Status {
		case "succeeded":
			return true, nil
		case "failed":
			return false, &transport.Error{Provider: ProviderCreatomate, Code: transport.CodeUnknown, Message: "render failed: " + render.ErrorMessage}
		default:
			return false, nil
		}
	})
	if cerr != nil {
		return nil, cerr
	}

	if render.URL == "" {
		return nil, &transport.Error{Provider: ProviderCreatomate, Code: transport.CodeUnknown, Message: "render finished without url"}
	}
	return &domain.AssemblyArtifact{VideoURL: render.URL}, nil
}

func (g *Creatomate) buildSource(req Request) creatomateSource {
	width, height := 1080, 1920
	if g.cfg.Resolution == "1920x1080" {
		width, height = 1920, 1080
	}
	source := creatomateSource{OutputFormat: "mp4", Width: width, Height: height}

	cursor := 0.0
	if req.AIClip != nil && req.AIClip.ClipURL != "" {
		length := float64(req.AIClip.DurationSec)
		if length <= 0 {
			length = 5
		}
		source.Elements = append(source.Elements, creatomateElement{
			Type: "video", Source: req.AIClip.ClipURL, Time: cursor, Duration: length,
		})
		cursor += length
	}
	if req.Script != nil {
		for i, scene := range req.Script.Scenes {
			asset := assetForScene(req.Media, i)
			if asset == nil {
				continue
			}
			length := sceneLength(scene)
			source.Elements = append(source.Elements, creatomateElement{
				Type: "video", Source: asset.URL, Time: cursor, Duration: length,
			})
			if g.cfg.BurnSubtitles {
				source.Elements = append(source.Elements, creatomateElement{
					Type: "text", Text: scene.Narration, Time: cursor, Duration: length,
				})
			}
			cursor += length
		}
	}
	if req.AudioURL != "" {
		source.Elements = append(source.Elements, creatomateElement{
			Type: "audio", Source: req.AudioURL, Time: 0,
		})
	}
	return source
}

var _ Generator = (*Creatomate)(nil)
