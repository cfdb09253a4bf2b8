package localization_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/huhn511/arche/cache"
	"github.com/huhn511/arche/data"
	"github.com/huhn511/arche/localization"
)

// fakeStore is an in-memory read surface with a lookup counter.
type fakeStore struct {
	mu      sync.Mutex
	entries map[string]string
	lookups int
}

func newFakeStore(entries map[string]string) *fakeStore {
	return &fakeStore{entries: entries}
}

func (f *fakeStore) key(lang, code string) string {
	return lang + "/" + code
}

func (f *fakeStore) GetByLangCode(_ context.Context, lang, code string) (*data.Locale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lookups++
	message, ok := f.entries[f.key(lang, code)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &data.Locale{Lang: lang, Code: code, Message: message}, nil
}

func (f *fakeStore) lookupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups
}

// recordingObserver captures fallback and missing notifications.
type recordingObserver struct {
	mu        sync.Mutex
	fallbacks []string
	missing   []string
}

func (r *recordingObserver) OnLanguageFallback(_ context.Context, requested, resolved, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks = append(r.fallbacks, fmt.Sprintf("%s->%s:%s", requested, resolved, code))
}

func (r *recordingObserver) OnMessageMissing(_ context.Context, lang, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.missing = append(r.missing, lang+":"+code)
}

func newMessageCache(t *testing.T) cache.Cache[localization.Key, string] {
	t.Helper()

	raw := cache.NewInMemoryCache()
	t.Cleanup(func() { _ = raw.Close() })

	return cache.NewGenericCache[localization.Key, string](raw, localization.CacheKeyFunc("test"))
}

func TestResolveExactMatch(t *testing.T) {
	t.Parallel()

	store := newFakeStore(map[string]string{"en/greeting": "Hello"})
	resolver := localization.NewResolver(store, newMessageCache(t), nil, "en", time.Minute)

	require.Equal(t, "Hello", resolver.Resolve(context.Background(), "en", "greeting"))
}

func TestResolveFallsBackToBaseLanguage(t *testing.T) {
	t.Parallel()

	store := newFakeStore(map[string]string{"en/greeting": "Hello"})
	observer := &recordingObserver{}
	resolver := localization.NewResolver(store, newMessageCache(t), observer, "de", time.Minute)

	require.Equal(t, "Hello", resolver.Resolve(context.Background(), "en-US", "greeting"))
	require.Equal(t, []string{"en-US->en:greeting"}, observer.fallbacks)
	require.Empty(t, observer.missing)
}

func TestResolveFallsBackToDefaultLanguage(t *testing.T) {
	t.Parallel()

	store := newFakeStore(map[string]string{"en/greeting": "Hello"})
	observer := &recordingObserver{}
	resolver := localization.NewResolver(store, newMessageCache(t), observer, "en", time.Minute)

	require.Equal(t, "Hello", resolver.Resolve(context.Background(), "fr", "greeting"))
	require.Equal(t, []string{"fr->en:greeting"}, observer.fallbacks)
}

func TestResolveTotalMissReturnsCode(t *testing.T) {
	t.Parallel()

	store := newFakeStore(nil)
	observer := &recordingObserver{}
	resolver := localization.NewResolver(store, newMessageCache(t), observer, "en", time.Minute)

	require.Equal(t, "unknown.code", resolver.Resolve(context.Background(), "xx", "unknown.code"))
	require.Equal(t, []string{"xx:unknown.code"}, observer.missing)
	require.Empty(t, observer.fallbacks)
}

func TestResolveCachesAtRequestedKey(t *testing.T) {
	t.Parallel()

	store := newFakeStore(map[string]string{"en/greeting": "Hello"})
	messageCache := newMessageCache(t)
	resolver := localization.NewResolver(store, messageCache, nil, "en", time.Minute)

	ctx := context.Background()
	require.Equal(t, "Hello", resolver.Resolve(ctx, "en-US", "greeting"))
	afterFirst := store.lookupCount()

	// The second call must come straight from cache.
	require.Equal(t, "Hello", resolver.Resolve(ctx, "en-US", "greeting"))
	require.Equal(t, afterFirst, store.lookupCount())

	// The populated key is the requested language, not the fallback one.
	message, found, err := messageCache.Get(ctx, localization.Key{Lang: "en-US", Code: "greeting"})
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "Hello", message)
}

func TestResolveIsDeterministic(t *testing.T) {
	t.Parallel()

	store := newFakeStore(map[string]string{
		"en/greeting": "Hello",
		"de/greeting": "Hallo",
	})
	resolver := localization.NewResolver(store, newMessageCache(t), nil, "en", time.Minute)

	ctx := context.Background()
	first := resolver.Resolve(ctx, "de-AT", "greeting")
	second := resolver.Resolve(ctx, "de-AT", "greeting")
	require.Equal(t, first, second)
	require.Equal(t, "Hallo", first)
}

func TestResolveMissNotCached(t *testing.T) {
	t.Parallel()

	store := newFakeStore(nil)
	resolver := localization.NewResolver(store, newMessageCache(t), nil, "en", time.Minute)

	ctx := context.Background()
	require.Equal(t, "greeting", resolver.Resolve(ctx, "en", "greeting"))
	before := store.lookupCount()

	// New entries must be visible immediately on the next resolve.
	store.mu.Lock()
	store.entries = map[string]string{"en/greeting": "Hello"}
	store.mu.Unlock()

	require.Equal(t, "Hello", resolver.Resolve(ctx, "en", "greeting"))
	require.Greater(t, store.lookupCount(), before)
}

func TestResolveWithoutCache(t *testing.T) {
	t.Parallel()

	store := newFakeStore(map[string]string{"en/greeting": "Hello"})
	resolver := localization.NewResolver(store, nil, nil, "en", time.Minute)

	require.Equal(t, "Hello", resolver.Resolve(context.Background(), "en", "greeting"))
}

func TestResolveEmptyCode(t *testing.T) {
	t.Parallel()

	store := newFakeStore(nil)
	resolver := localization.NewResolver(store, newMessageCache(t), nil, "en", time.Minute)

	require.Empty(t, resolver.Resolve(context.Background(), "en", "  "))
	require.Zero(t, store.lookupCount())
}
