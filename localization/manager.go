package localization

import (
	"context"
	"strings"

	"github.com/huhn511/arche/cache"
	"github.com/huhn511/arche/data"
	"github.com/huhn511/arche/datastore"
	"github.com/huhn511/arche/workerpool"
)

// Manager is the administrative surface over the locale store. Every
// write invalidates the message cache before it returns, so no caller
// can observe a stale message after a mutation completes.
type Manager interface {
	Resolve(ctx context.Context, lang, code string) string
	Put(ctx context.Context, lang, code, message string) (*data.Locale, error)
	Delete(ctx context.Context, lang, code string) error
	ListByLang(ctx context.Context, lang string) (workerpool.JobResultPipe[[]*data.Locale], error)
	Languages(ctx context.Context) ([]string, error)
	// InvalidateLang drops every cached message for a language, used
	// after bulk reloads.
	InvalidateLang(ctx context.Context, lang string) error
}

type managerImpl struct {
	repo      datastore.LocaleRepository
	cache     cache.Cache[Key, string]
	resolver  *Resolver
	namespace string
}

func NewManager(
	repo datastore.LocaleRepository,
	messageCache cache.Cache[Key, string],
	resolver *Resolver,
	namespace string,
) Manager {
	return &managerImpl{
		repo:      repo,
		cache:     messageCache,
		resolver:  resolver,
		namespace: namespace,
	}
}

func (m *managerImpl) Resolve(ctx context.Context, lang, code string) string {
	return m.resolver.Resolve(ctx, lang, code)
}

func (m *managerImpl) Put(ctx context.Context, lang, code, message string) (*data.Locale, error) {
	lang = NormalizeLang(lang)
	entry, err := m.repo.Put(ctx, lang, code, message)
	if err != nil {
		return nil, err
	}

	if err = m.invalidate(ctx, lang, entry.Code); err != nil {
		return nil, err
	}
	return entry, nil
}

func (m *managerImpl) Delete(ctx context.Context, lang, code string) error {
	lang = NormalizeLang(lang)
	code = strings.TrimSpace(code)

	err := m.repo.Delete(ctx, lang, code)
	if err != nil {
		return err
	}

	return m.invalidate(ctx, lang, code)
}

// invalidate drops cached state made stale by a write to (lang, code).
// Resolve caches under the requested key, so a message written to any
// lang reachable through fallback (base tag, regional base such as
// zh-Hans, or the default language) can be aliased under arbitrary
// requested keys. The whole namespace is cleared rather than chasing
// aliases; the dataset is small and admin-driven.
func (m *managerImpl) invalidate(ctx context.Context, lang, code string) error {
	if m.cache == nil {
		return nil
	}

	if err := m.cache.Delete(ctx, Key{Lang: lang, Code: code}); err != nil {
		return err
	}

	return m.cache.DeletePrefix(ctx, CachePrefix(m.namespace))
}

func (m *managerImpl) ListByLang(
	ctx context.Context,
	lang string,
) (workerpool.JobResultPipe[[]*data.Locale], error) {
	return m.repo.ListByLang(ctx, NormalizeLang(lang))
}

func (m *managerImpl) Languages(ctx context.Context) ([]string, error) {
	return m.repo.Languages(ctx)
}

func (m *managerImpl) InvalidateLang(ctx context.Context, lang string) error {
	if m.cache == nil {
		return nil
	}
	return m.cache.DeletePrefix(ctx, CacheLangPrefix(m.namespace, NormalizeLang(lang)))
}
