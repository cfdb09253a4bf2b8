package localization_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/huhn511/arche/data"
	"github.com/huhn511/arche/datastore/pool"
	"github.com/huhn511/arche/localization"
	"github.com/huhn511/arche/workerpool"
)

// fakeRepository is an in-memory locale repository.
type fakeRepository struct {
	mu      sync.Mutex
	entries map[string]*data.Locale
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{entries: map[string]*data.Locale{}}
}

func (f *fakeRepository) key(lang, code string) string {
	return lang + "/" + code
}

func (f *fakeRepository) Svc() pool.Pool {
	return nil
}

func (f *fakeRepository) Put(_ context.Context, lang, code, message string) (*data.Locale, error) {
	entry := &data.Locale{Lang: strings.TrimSpace(lang), Code: strings.TrimSpace(code), Message: message}
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[f.key(entry.Lang, entry.Code)] = entry
	return entry, nil
}

func (f *fakeRepository) GetByLangCode(_ context.Context, lang, code string) (*data.Locale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.entries[f.key(lang, code)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return entry, nil
}

func (f *fakeRepository) ListByLang(
	_ context.Context,
	lang string,
) (workerpool.JobResultPipe[[]*data.Locale], error) {
	f.mu.Lock()
	var batch []*data.Locale
	for _, entry := range f.entries {
		if entry.Lang == lang {
			batch = append(batch, entry)
		}
	}
	f.mu.Unlock()

	job := workerpool.NewJob(func(ctx context.Context, result workerpool.JobResultPipe[[]*data.Locale]) error {
		if len(batch) == 0 {
			return nil
		}
		return result.WriteResult(ctx, batch)
	})

	go func() {
		defer job.Close()
		_ = job.F()(context.Background(), job)
	}()
	return job, nil
}

func (f *fakeRepository) Delete(_ context.Context, lang, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, f.key(lang, code))
	return nil
}

func (f *fakeRepository) Count(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.entries)), nil
}

func (f *fakeRepository) Languages(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	seen := map[string]bool{}
	var languages []string
	for _, entry := range f.entries {
		if !seen[entry.Lang] {
			seen[entry.Lang] = true
			languages = append(languages, entry.Lang)
		}
	}
	return languages, nil
}

func newTestManager(t *testing.T) (localization.Manager, *fakeRepository) {
	t.Helper()

	repo := newFakeRepository()
	messageCache := newMessageCache(t)
	resolver := localization.NewResolver(repo, messageCache, nil, "en", time.Minute)

	return localization.NewManager(repo, messageCache, resolver, "test"), repo
}

func TestManagerPutThenResolve(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)
	ctx := context.Background()

	_, err := manager.Put(ctx, "en", "greeting", "Hello")
	require.NoError(t, err)

	require.Equal(t, "Hello", manager.Resolve(ctx, "en", "greeting"))
}

func TestManagerPutOverwritesCachedMessage(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)
	ctx := context.Background()

	_, err := manager.Put(ctx, "en", "greeting", "Hello")
	require.NoError(t, err)
	require.Equal(t, "Hello", manager.Resolve(ctx, "en", "greeting"))

	_, err = manager.Put(ctx, "en", "greeting", "Hi there")
	require.NoError(t, err)
	require.Equal(t, "Hi there", manager.Resolve(ctx, "en", "greeting"))
}

func TestManagerDeleteInvalidatesCache(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)
	ctx := context.Background()

	_, err := manager.Put(ctx, "en", "greeting", "Hello")
	require.NoError(t, err)
	require.Equal(t, "Hello", manager.Resolve(ctx, "en", "greeting"))

	require.NoError(t, manager.Delete(ctx, "en", "greeting"))

	// The deleted message must never be served again, even though it
	// was cached before the delete.
	require.Equal(t, "greeting", manager.Resolve(ctx, "en", "greeting"))
}

func TestManagerDeleteInvalidatesFallbackAliases(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)
	ctx := context.Background()

	_, err := manager.Put(ctx, "en", "greeting", "Hello")
	require.NoError(t, err)

	// Cache the en message under the en-US requested key via fallback.
	require.Equal(t, "Hello", manager.Resolve(ctx, "en-US", "greeting"))

	require.NoError(t, manager.Delete(ctx, "en", "greeting"))
	require.Equal(t, "greeting", manager.Resolve(ctx, "en-US", "greeting"))
}

func TestManagerDeleteInvalidatesRegionalBaseAliases(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)
	ctx := context.Background()

	_, err := manager.Put(ctx, "zh-Hans", "greeting", "你好")
	require.NoError(t, err)

	// Cache the zh-Hans message under the zh-Hans-CN requested key via
	// single-level base fallback.
	require.Equal(t, "你好", manager.Resolve(ctx, "zh-Hans-CN", "greeting"))

	require.NoError(t, manager.Delete(ctx, "zh-Hans", "greeting"))
	require.Equal(t, "greeting", manager.Resolve(ctx, "zh-Hans-CN", "greeting"))
}

func TestManagerDeleteAbsentEntryIsNoop(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)
	require.NoError(t, manager.Delete(context.Background(), "en", "never.stored"))
}

func TestManagerNormalizesLanguageOnWrite(t *testing.T) {
	t.Parallel()

	manager, repo := newTestManager(t)
	ctx := context.Background()

	_, err := manager.Put(ctx, "EN-us", "greeting", "Hello")
	require.NoError(t, err)

	entry, err := repo.GetByLangCode(ctx, "en-US", "greeting")
	require.NoError(t, err)
	require.Equal(t, "Hello", entry.Message)
}

func TestManagerListByLang(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)
	ctx := context.Background()

	_, err := manager.Put(ctx, "en", "greeting", "Hello")
	require.NoError(t, err)
	_, err = manager.Put(ctx, "en", "farewell", "Goodbye")
	require.NoError(t, err)

	pipe, err := manager.ListByLang(ctx, "en")
	require.NoError(t, err)

	var collected []*data.Locale
	err = workerpool.ConsumeResultStream(ctx, pipe, func(batch []*data.Locale) {
		collected = append(collected, batch...)
	})
	require.NoError(t, err)
	require.Len(t, collected, 2)
}

func TestManagerLanguages(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)
	ctx := context.Background()

	_, err := manager.Put(ctx, "en", "greeting", "Hello")
	require.NoError(t, err)
	_, err = manager.Put(ctx, "de", "greeting", "Hallo")
	require.NoError(t, err)

	languages, err := manager.Languages(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"en", "de"}, languages)
}
