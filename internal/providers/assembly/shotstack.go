package assembly

import (
	"context"
	"net/http"

	"server/internal/domain"
	"server/internal/providers/transport"
)

const shotstackBaseURL = "https://api.shotstack.io/edit/v1"

type shotstackEdit struct {
	Timeline shotstackTimeline `json:"timeline"`
	Output   shotstackOutput   `json:"output"`
}

type shotstackTimeline struct {
	Soundtrack *shotstackSoundtrack `json:"soundtrack,omitempty"`
	Tracks     []shotstackTrack     `json:"tracks"`
}

type shotstackSoundtrack struct {
	Src string `json:"src"`
}

type shotstackTrack struct {
	Clips []shotstackClip `json:"clips"`
}

type shotstackClip struct {
	Asset  shotstackAsset `json:"asset"`
	Start  float64        `json:"start"`
	Length float64        `json:"length"`
	Fit    string         `json:"fit,omitempty"`
}

type shotstackAsset struct {
	Type string `json:"type"`
	Src  string `json:"src,omitempty"`
	Text string `json:"text,omitempty"`
}

type shotstackOutput struct {
	Format     string `json:"format"`
	Resolution string `json:"resolution"`
}

type shotstackRenderResponse struct {
	Response struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		URL    string `json:"url"`
		Error  string `json:"error"`
	} `json:"response"`
}

// Shotstack submits a timeline built from the accumulated artifacts and
// polls the render until it is done.
type Shotstack struct {
	caller *transport.Caller
	cred   domain.ProviderCredential
	cfg    domain.AssemblyConfig
}

// NewShotstackFactory returns the per-job constructor for the Shotstack adapter.
func NewShotstackFactory(caller *transport.Caller) Factory {
	return func(cred domain.ProviderCredential, cfg domain.AssemblyConfig) Generator {
		return &Shotstack{caller: caller, cred: cred, cfg: cfg}
	}
}

func (g *Shotstack) AssembleVideo(ctx context.Context, req Request) (*domain.AssemblyArtifact, *transport.Error) {
	edit := g.buildEdit(req)

	var submitted shotstackRenderResponse
	cerr := g.caller.DoJSON(ctx, transport.Call{
		Provider: ProviderShotstack,
		JobID:    req.JobID,
		Step:     domain.StepAssembly,
		Method:   http.MethodPost,
		URL:      shotstackBaseURL + "/render",
		Header:   map[string]string{"x-api-key": g.cred.APIKey},
		Body:     edit,
		Secrets:  []string{g.cred.APIKey},
	}, &submitted)
	if cerr != nil {
		return nil, cerr
	}
	if submitted.Response.ID == "" {
		return nil, &transport.Error{Provider: ProviderShotstack, Code: transport.CodeUnknown, Message: "render submit returned no id"}
	}
	renderID := submitted.Response.ID

	var render shotstackRenderResponse
	cerr = pollUntil(ctx, ProviderShotstack, func() (bool, *transport.Error) {
		render = shotstackRenderResponse{}
		pollErr := g.caller.DoJSON(ctx, transport.Call{
			Provider: ProviderShotstack,
			JobID:    req.JobID,
			Step:     domain.StepAssembly,
			Method:   http.MethodGet,
			URL:      shotstackBaseURL + "/render/" + renderID,
			Header:   map[string]string{"x-api-key": g.cred.APIKey},
			Secrets:  []string{g.cred.APIKey},
		}, &render)
		if pollErr != nil {
			return false, pollErr
		}
		switch render.Response.Status {
		case "done":
			return true, nil
		case "failed":
			return false, &transport.Error{Provider: ProviderShotstack, Code: transport.CodeUnknown, Message: "render failed: " + render.Response.Error}
		default:
			return false, nil
		}
	})
	if cerr != nil {
		return nil, cerr
	}

	if render.Response.URL == "" {
		return nil, &transport.Error{Provider: ProviderShotstack, Code: transport.CodeUnknown, Message: "render finished without url"}
	}
	return &domain.AssemblyArtifact{VideoURL: render.Response.URL}, nil
}

func (g *Shotstack) buildEdit(req Request) shotstackEdit {
	timeline := shotstackTimeline{}
	if req.AudioURL != "" {
		timeline.Soundtrack = &shotstackSoundtrack{Src: req.AudioURL}
	}

	var visual shotstackTrack
	cursor := 0.0
	if req.AIClip != nil && req.AIClip.ClipURL != "" {
		length := float64(req.AIClip.DurationSec)
		if length <= 0 {
			length = 5
		}
		visual.Clips = append(visual.Clips, shotstackClip{
			Asset:  shotstackAsset{Type: "video", Src: req.AIClip.ClipURL},
			Start:  cursor,
			Length: length,
			Fit:    "cover",
		})
		cursor += length
	}
	if req.Media != nil && req.Script != nil {
		for i, scene := range req.Script.Scenes {
			asset := assetForScene(req.Media, i)
			if asset == nil {
				continue
			}
			length := sceneLength(scene)
			visual.Clips = append(visual.Clips, shotstackClip{
				Asset:  shotstackAsset{Type: "video", Src: asset.URL},
				Start:  cursor,
				Length: length,
				Fit:    "cover",
			})
			cursor += length
		}
	}
	timeline.Tracks = append(timeline.Tracks, visual)

	if g.cfg.BurnSubtitles && req.Script != nil {
		var captions shotstackTrack
		start := 0.0
		for _, scene := range req.Script.Scenes {
			length := sceneLength(scene)
			captions.Clips = append(captions.Clips, shotstackClip{
				Asset:  shotstackAsset{Type: "title", Text: scene.Narration},
				Start:  start,
				Length: length,
			})
			start += length
		}
		timeline.Tracks = append(timeline.Tracks, captions)
	}

	return shotstackEdit{
		Timeline: timeline,
		Output:   shotstackOutput{Format: "mp4", Resolution: shotstackResolution(g.cfg.Resolution)},
	}
}

func shotstackResolution(res string) string {
	switch res {
	case "1080x1920", "1920x1080":
		return "1080"
	case "720x1280", "1280x720":
		return "hd"
	default:
		return "1080"
	}
}

var _ Generator = (*Shotstack)(nil)
