package media

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"server/internal/domain"
	"server/internal/providers/transport"
)

const pexelsBaseURL = "https://api.pexels.com"

type pexelsVideoResponse struct {
	Videos []struct {
		User struct {
			Name string `json:"name"`
		} `json:"user"`
		VideoFiles []struct {
			Link    string `json:"link"`
			Quality string `json:"quality"`
		} `json:"video_files"`
	} `json:"videos"`
}

// Pexels fetches stock clips from the Pexels video search API.
type Pexels struct {
	caller *transport.Caller
	cred   domain.ProviderCredential
	cfg    domain.MediaConfig
}

// NewPexelsFactory returns the per-job constructor for the Pexels adapter.
func NewPexelsFactory(caller *transport.Caller) Factory {
	return func(cred domain.ProviderCredential, cfg domain.MediaConfig) Generator {
		return &Pexels{caller: caller, cred: cred, cfg: cfg}
	}
}

func (g *Pexels) FetchMedia(ctx context.Context, req Request) (*domain.MediaArtifact, *transport.Error) {
	artifact := &domain.MediaArtifact{}
	for i, scene := range req.Scenes {
		query := url.Values{}
		query.Set("query", scene.VisualPrompt)
		query.Set("orientation", g.cfg.Orientation)
		query.Set("per_page", fmt.Sprint(g.cfg.AssetsPerScene))

		var out pexelsVideoResponse
		cerr := g.caller.DoJSON(ctx, transport.Call{
			Provider: ProviderPexels,
			JobID:    req.JobID,
			Step:     domain.StepMedia,
			Method:   http.MethodGet,
			URL:      pexelsBaseURL + "/videos/search?" + query.Encode(),
			Header:   map[string]string{"Authorization": g.cred.APIKey},
			Secrets:  []string{g.cred.APIKey},
		}, &out)
		if cerr != nil {
			return nil, cerr
		}

		for _, video := range out.Videos {
			link := ""
			for _, f := range video.VideoFiles {
				link = f.Link
				if f.Quality == "hd" {
					break
				}
			}
			if link == "" {
				continue
			}
			artifact.Assets = append(artifact.Assets, domain.MediaAsset{
				URL:        link,
				Kind:       "video",
				SceneIndex: i,
				Credit:     video.User.Name,
			})
		}
	}

	if len(artifact.Assets) == 0 {
		return nil, &transport.Error{Provider: ProviderPexels, Code: transport.CodeUnknown, Message: "no usable media found for any scene"}
	}
	return artifact, nil
}

var _ Generator = (*Pexels)(nil)
