// Package events publishes and consumes locale resolution events over a
// pubsub queue, so missing translations surface to operators instead of
// silently rendering as raw codes.
package events

import "time"

// MissingTranslationEvent records a resolve call that found no
// translation at any fallback level.
type MissingTranslationEvent struct {
	Lang       string    `json:"lang"`
	Code       string    `json:"code"`
	OccurredAt time.Time `json:"occurred_at"`
}

// LanguageFallbackEvent records a resolve call served by a language
// other than the one requested.
type LanguageFallbackEvent struct {
	RequestedLang string    `json:"requested_lang"`
	ResolvedLang  string    `json:"resolved_lang"`
	Code          string    `json:"code"`
	OccurredAt    time.Time `json:"occurred_at"`
}

const (
	// EventTypeHeader carries the payload type in message metadata.
	EventTypeHeader = "event-type"

	EventTypeMissingTranslation = "locale.missing_translation"
	EventTypeLanguageFallback   = "locale.language_fallback"
)
