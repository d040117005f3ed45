package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"server/internal/domain"
	"server/pkg/zip"
)

// GenerationDownload bundles everything a completed generation produced into
// a single zip: the script, the artifact manifest, and the narration track
// when it is stored locally. Remote outputs (rendered video, AI clips) are
// referenced by URL in the manifest instead of being re-downloaded here.
func (a *App) GenerationDownload(w http.ResponseWriter, r *http.Request) {
	job, ok := a.loadOwnedJob(w, r)
	if !ok {
		return
	}
	if job.Status != domain.JobStatusCompleted {
		a.error(w, http.StatusConflict, "not_completed", "generation has not completed")
		return
	}

	var assets []zip.Asset

	if job.Artifacts.Script != nil {
		script, err := json.MarshalIndent(job.Artifacts.Script, "", "  ")
		if err == nil {
			assets = append(assets, zip.Asset{Filename: "script.json", MIME: "application/json", Data: script})
		}
	}

	manifest, err := json.MarshalIndent(job.Artifacts, "", "  ")
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to build bundle")
		return
	}
	assets = append(assets, zip.Asset{Filename: "artifacts.json", MIME: "application/json", Data: manifest})

	if voice := job.Artifacts.Voice; voice != nil && voice.AudioKey != "" {
		audio, err := a.Store.Read(r.Context(), voice.AudioKey)
		if err != nil {
			a.Logger.Warn().Err(err).Str("job_id", job.ID).Msg("download: narration missing from storage")
		} else {
			assets = append(assets, zip.Asset{Filename: "narration." + voice.Format, MIME: "audio/mpeg", Data: audio})
		}
	}

	archive := zip.ArchiveAssets(assets)
	if archive == nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to build bundle")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "generation-"+job.ID+".zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}
