package localization

import (
	"context"

	"github.com/pitabwire/util"
)

// Observer receives notifications about resolution outcomes. Callbacks
// must be fast and non-blocking, they run on the resolve path.
type Observer interface {
	// OnLanguageFallback fires when a message resolved in a language
	// other than the one requested.
	OnLanguageFallback(ctx context.Context, requestedLang, resolvedLang, code string)
	// OnMessageMissing fires when no translation exists at any
	// fallback level and the code itself is served.
	OnMessageMissing(ctx context.Context, lang, code string)
}

// NoopObserver ignores all notifications.
type NoopObserver struct{}

func (NoopObserver) OnLanguageFallback(_ context.Context, _, _, _ string) {}
func (NoopObserver) OnMessageMissing(_ context.Context, _, _ string)     {}

// LoggingObserver writes resolution outcomes to the structured log.
type LoggingObserver struct{}

func (LoggingObserver) OnLanguageFallback(ctx context.Context, requestedLang, resolvedLang, code string) {
	util.Log(ctx).
		WithField("requested", requestedLang).
		WithField("resolved", resolvedLang).
		WithField("code", code).
		Debug("message resolved via fallback language")
}

func (LoggingObserver) OnMessageMissing(ctx context.Context, lang, code string) {
	util.Log(ctx).
		WithField("lang", lang).
		WithField("code", code).
		Warn("no translation found, serving code as message")
}
