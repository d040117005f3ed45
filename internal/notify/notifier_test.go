package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"server/internal/domain"
)

type recordingExecutor struct {
	args    [][]any
	execErr error
}

func (e *recordingExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	e.args = append(e.args, args)
	return pgconn.CommandTag{}, e.execErr
}

func (e *recordingExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return nil
}

func (e *recordingExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func lastPayload(t *testing.T, exec *recordingExecutor) map[string]any {
	t.Helper()
	if len(exec.args) == 0 {
		t.Fatal("no notification inserted")
	}
	args := exec.args[len(exec.args)-1]
	if len(args) != 3 {
		t.Fatalf("insert args = %d, want 3", len(args))
	}
	raw, ok := args[2].([]byte)
	if !ok {
		t.Fatalf("payload arg is %T", args[2])
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return payload
}

func TestNotifyInsertsRowWithTitle(t *testing.T) {
	exec := &recordingExecutor{}
	n := NewNotifier(exec, zerolog.Nop(), "en")

	n.Notify(context.Background(), "user-1", domain.NotifyGenerationCompleted, map[string]any{
		"job_id":    "job-1",
		"video_url": "https://cdn.example.com/final.mp4",
	})

	payload := lastPayload(t, exec)
	if payload["title"] != "Your video is ready" {
		t.Fatalf("title = %q", payload["title"])
	}
	if payload["video_url"] != "https://cdn.example.com/final.mp4" {
		t.Fatalf("payload lost video_url: %v", payload)
	}
	if got := exec.args[0][0]; got != "user-1" {
		t.Fatalf("user arg = %v", got)
	}
	if got := exec.args[0][1]; got != string(domain.NotifyGenerationCompleted) {
		t.Fatalf("kind arg = %v", got)
	}
}

func TestTitleLocalization(t *testing.T) {
	cases := []struct {
		kind    domain.NotificationKind
		locale  string
		payload map[string]any
		want    string
	}{
		{domain.NotifyGenerationCompleted, "en", nil, "Your video is ready"},
		{domain.NotifyGenerationCompleted, "id", nil, "Video kamu sudah jadi"},
		{domain.NotifyGenerationCompleted, "id-ID", nil, "Video kamu sudah jadi"},
		{domain.NotifyGenerationCompleted, "fr", nil, "Your video is ready"},
		{domain.NotifyGenerationFailed, "en", map[string]any{"step": "video_ai"}, "Video generation failed at the Video Ai step"},
		{domain.NotifyGenerationFailed, "id", map[string]any{"step": "voice"}, "Pembuatan video gagal di tahap Voice"},
		{domain.NotifyGenerationFailed, "en", nil, "Video generation failed"},
		{domain.NotifyGenerationTimedOut, "en", nil, "Video generation timed out"},
		{domain.NotifyGenerationNeverStarted, "id", nil, "Pembuatan video tidak pernah dimulai"},
	}
	for _, tc := range cases {
		if got := title(tc.kind, tc.locale, tc.payload); got != tc.want {
			t.Errorf("title(%s, %s) = %q, want %q", tc.kind, tc.locale, got, tc.want)
		}
	}
}

func TestNotifySwallowsInsertFailure(t *testing.T) {
	exec := &recordingExecutor{execErr: errors.New("connection refused")}
	n := NewNotifier(exec, zerolog.Nop(), "en")

	// Must not panic or propagate.
	n.Notify(context.Background(), "user-1", domain.NotifyGenerationFailed, map[string]any{"step": "media"})

	if len(exec.args) != 1 {
		t.Fatalf("insert attempts = %d", len(exec.args))
	}
}

func TestTitleUnknownKindFallsBack(t *testing.T) {
	got := title(domain.NotificationKind("plan_ready"), "en", nil)
	if !strings.Contains(got, "plan_ready") {
		t.Fatalf("fallback title = %q", got)
	}
}
