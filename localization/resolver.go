package localization

import (
	"context"
	"strings"
	"time"

	"github.com/pitabwire/util"

	"github.com/huhn511/arche/cache"
	"github.com/huhn511/arche/data"
)

// Key addresses one cached message.
type Key struct {
	Lang string
	Code string
}

// CacheKeyFunc renders cache keys under the given namespace. The layout
// is shared with CacheLangPrefix so per-language invalidation works.
func CacheKeyFunc(namespace string) func(Key) string {
	return func(k Key) string {
		return namespace + ":locale:" + k.Lang + ":" + k.Code
	}
}

// CacheLangPrefix is the key prefix covering every cached message for a language.
func CacheLangPrefix(namespace, lang string) string {
	return namespace + ":locale:" + lang + ":"
}

// CachePrefix covers every cached message in the namespace.
func CachePrefix(namespace string) string {
	return namespace + ":locale:"
}

// Store is the read surface the resolver depends on.
type Store interface {
	GetByLangCode(ctx context.Context, lang, code string) (*data.Locale, error)
}

// fallbackStep is one level of the resolution chain.
type fallbackStep struct {
	name string
	lang string
}

// Resolver turns a (requested language, code) pair into a displayable
// message by walking an ordered fallback chain over the store. It never
// fails hard, the worst outcome is the code echoed back.
type Resolver struct {
	store       Store
	cache       cache.Cache[Key, string]
	observer    Observer
	defaultLang string
	cacheTTL    time.Duration
}

func NewResolver(
	store Store,
	messageCache cache.Cache[Key, string],
	observer Observer,
	defaultLang string,
	cacheTTL time.Duration,
) *Resolver {
	if observer == nil {
		observer = NoopObserver{}
	}

	return &Resolver{
		store:       store,
		cache:       messageCache,
		observer:    observer,
		defaultLang: NormalizeLang(defaultLang),
		cacheTTL:    cacheTTL,
	}
}

// fallbackChain builds the ordered list of languages to try, deduplicated.
func (r *Resolver) fallbackChain(requested string) []fallbackStep {
	steps := []fallbackStep{{name: "requested", lang: requested}}

	if base := BaseLang(requested); base != "" {
		steps = append(steps, fallbackStep{name: "base", lang: base})
	}

	if r.defaultLang != "" {
		steps = append(steps, fallbackStep{name: "default", lang: r.defaultLang})
	}

	seen := make(map[string]bool, len(steps))
	deduped := steps[:0]
	for _, step := range steps {
		if step.lang == "" || seen[step.lang] {
			continue
		}
		seen[step.lang] = true
		deduped = append(deduped, step)
	}
	return deduped
}

// Resolve returns the best matching message for code in the requested
// language. Hits at any fallback level are cached under the original
// requested key so repeat lookups skip the store entirely.
func (r *Resolver) Resolve(ctx context.Context, requestedLang, code string) string {
	requestedLang = NormalizeLang(requestedLang)
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}

	cacheKey := Key{Lang: requestedLang, Code: code}

	if r.cache != nil {
		message, found, err := r.cache.Get(ctx, cacheKey)
		if err != nil {
			util.Log(ctx).WithError(err).WithField("code", code).Warn("cache lookup failed, hitting store")
		} else if found {
			return message
		}
	}

	for _, step := range r.fallbackChain(requestedLang) {
		entry, err := r.store.GetByLangCode(ctx, step.lang, code)
		if err != nil {
			if data.ErrorIsNoRows(err) {
				continue
			}

			util.Log(ctx).WithError(err).
				WithField("lang", step.lang).
				WithField("code", code).
				Error("store lookup failed during resolution")
			return code
		}

		if r.cache != nil {
			if cacheErr := r.cache.Set(ctx, cacheKey, entry.Message, r.cacheTTL); cacheErr != nil {
				util.Log(ctx).WithError(cacheErr).WithField("code", code).Warn("could not cache resolved message")
			}
		}

		if step.lang != requestedLang {
			r.observer.OnLanguageFallback(ctx, requestedLang, step.lang, code)
		}
		return entry.Message
	}

	r.observer.OnMessageMissing(ctx, requestedLang, code)
	return code
}
