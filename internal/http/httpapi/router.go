package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/infra"
	"server/internal/middleware"
)

type Options struct {
	App           *handlers.App
	Config        *infra.Config
	DefaultLocale string
	// AssetsDir serves generated files (narration audio) when set; object
	// storage deployments leave it empty and point PUBLIC_BASE_URL at a CDN.
	AssetsDir string
}

func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.App.Logger),
		middleware.CORS(opts.Config.CORSAllowedOrigins),
		middleware.I18N(opts.DefaultLocale),
	)

	r.Get("/v1/healthz", opts.App.Health)

	if opts.AssetsDir != "" {
		fs := http.StripPrefix("/assets/", http.FileServer(http.Dir(opts.AssetsDir)))
		r.Get("/assets/*", fs.ServeHTTP)
	}

	r.Route("/v1/generations", func(r chi.Router) {
		r.Use(
			middleware.AuthJWT(opts.Config.JWTSecret),
			middleware.RateLimit(opts.Config.RateLimitPerMin, time.Minute),
		)
		r.Post("/", opts.App.GenerationCreate)
		r.Get("/{job_id}", opts.App.GenerationStatus)
		r.Post("/{job_id}/retry", opts.App.GenerationRetry)
		r.Post("/{job_id}/cancel", opts.App.GenerationCancel)
		r.Get("/{job_id}/download", opts.App.GenerationDownload)
	})

	return r
}
