package media

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"server/internal/domain"
	"server/internal/providers/transport"
)

const pixabayBaseURL = "https://pixabay.com/api"

type pixabayVideoResponse struct {
	Hits []struct {
		User   string `json:"user"`
		Videos struct {
			Medium struct {
				URL string `json:"url"`
			} `json:"medium"`
		} `json:"videos"`
	} `json:"hits"`
}

// Pixabay fetches stock clips from the Pixabay video API. The key travels in
// the query string, so the whole URL is masked in audit rows.
type Pixabay struct {
	caller *transport.Caller
	cred   domain.ProviderCredential
	cfg    domain.MediaConfig
}

// NewPixabayFactory returns the per-job constructor for the Pixabay adapter.
func NewPixabayFactory(caller *transport.Caller) Factory {
	return func(cred domain.ProviderCredential, cfg domain.MediaConfig) Generator {
		return &Pixabay{caller: caller, cred: cred, cfg: cfg}
	}
}

func (g *Pixabay) FetchMedia(ctx context.Context, req Request) (*domain.MediaArtifact, *transport.Error) {
	artifact := &domain.MediaArtifact{}
	for i, scene := range req.Scenes {
		query := url.Values{}
		query.Set("key", g.cred.APIKey)
		query.Set("q", scene.VisualPrompt)
		query.Set("per_page", fmt.Sprint(g.cfg.AssetsPerScene))

		var out pixabayVideoResponse
		cerr := g.caller.DoJSON(ctx, transport.Call{
			Provider: ProviderPixabay,
			JobID:    req.JobID,
			Step:     domain.StepMedia,
			Method:   http.MethodGet,
			URL:      pixabayBaseURL + "/videos/?" + query.Encode(),
			Secrets:  []string{g.cred.APIKey},
		}, &out)
		if cerr != nil {
			return nil, cerr
		}

		for _, hit := range out.Hits {
			if hit.Videos.Medium.URL == "" {
				continue
			}
			artifact.Assets = append(artifact.Assets, domain.MediaAsset{
				URL:        hit.Videos.Medium.URL,
				Kind:       "video",
				SceneIndex: i,
				Credit:     hit.User,
			})
		}
	}

	if len(artifact.Assets) == 0 {
		return nil, &transport.Error{Provider: ProviderPixabay, Code: transport.CodeUnknown, Message: "no usable media found for any scene"}
	}
	return artifact, nil
}

var _ Generator = (*Pixabay)(nil)
