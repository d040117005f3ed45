package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/sqlinline"
)

var supported = []language.Tag{
	language.English,    // en: default
	language.Indonesian, // id
}

var matcher = language.NewMatcher(supported)

// Notifier writes terminal-state notifications to the notifications table.
// It is fire and forget: any failure is logged, never propagated, so a
// broken notification path cannot fail a finished generation.
type Notifier struct {
	sql    infra.SQLExecutor
	logger infra.Logger
	locale string
}

func NewNotifier(sql infra.SQLExecutor, logger infra.Logger, defaultLocale string) *Notifier {
	return &Notifier{sql: sql, logger: logger, locale: defaultLocale}
}

func (n *Notifier) Notify(ctx context.Context, userID string, kind domain.NotificationKind, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["title"] = title(kind, n.locale, payload)

	raw, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error().Err(err).Str("user_id", userID).Msg("notify: encode payload failed")
		return
	}
	if _, err := n.sql.Exec(ctx, sqlinline.QInsertNotification, userID, string(kind), raw); err != nil {
		n.logger.Error().Err(err).Str("user_id", userID).Str("kind", string(kind)).
			Msg("notify: insert failed")
	}
}

func title(kind domain.NotificationKind, locale string, payload map[string]any) string {
	_, idx := language.MatchStrings(matcher, locale)
	indonesian := supported[idx] == language.Indonesian

	step, _ := payload["step"].(string)
	stepLabel := ""
	if step != "" {
		stepLabel = cases.Title(language.Und).String(strings.ReplaceAll(step, "_", " "))
	}

	switch kind {
	case domain.NotifyGenerationCompleted:
		if indonesian {
			return "Video kamu sudah jadi"
		}
		return "Your video is ready"
	case domain.NotifyGenerationFailed:
		if stepLabel != "" {
			if indonesian {
				return fmt.Sprintf("Pembuatan video gagal di tahap %s", stepLabel)
			}
			return fmt.Sprintf("Video generation failed at the %s step", stepLabel)
		}
		if indonesian {
			return "Pembuatan video gagal"
		}
		return "Video generation failed"
	case domain.NotifyGenerationTimedOut:
		if indonesian {
			return "Pembuatan video berhenti di tengah jalan"
		}
		return "Video generation timed out"
	case domain.NotifyGenerationNeverStarted:
		if indonesian {
			return "Pembuatan video tidak pernah dimulai"
		}
		return "Video generation never started"
	}
	return string(kind)
}

var _ domain.NotificationSink = (*Notifier)(nil)
