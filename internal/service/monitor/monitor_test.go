package monitor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	apperrors "github.com/darkkaiser/coffee-watcher/internal/pkg/errors"
	"github.com/darkkaiser/coffee-watcher/internal/service/fetcher"
	"github.com/darkkaiser/coffee-watcher/internal/service/scraper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// 테스트용 스텁
// ============================================================================

// memCacheStore 메모리 기반 CacheStore 스텁
type memCacheStore struct {
	m       map[string]string
	saveErr error
	loadErr error
}

func newMemCacheStore() *memCacheStore {
	return &memCacheStore{m: map[string]string{}}
}

func (s *memCacheStore) Load(key string) (string, bool, error) {
	if s.loadErr != nil {
		return "", false, s.loadErr
	}
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *memCacheStore) Save(key, value string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.m[key] = value
	return nil
}

// recordingSender 발송된 메시지를 기록하는 NotificationSender 스텁
type recordingSender struct {
	mu          sync.Mutex
	notified    []string
	diagnostics []string
	notifyErr   error
}

func (s *recordingSender) NotifyDefault(_ context.Context, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.notifyErr != nil {
		return s.notifyErr
	}
	s.notified = append(s.notified, message)
	return nil
}

func (s *recordingSender) PostDiagnostics(message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.diagnostics = append(s.diagnostics, message)
	return true
}

func (s *recordingSender) notifiedMessages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.notified...)
}

// newListingServer 상품 목록(products.json)을 반환하는 테스트 서버를 생성합니다.
func newListingServer(t *testing.T, body string) (*httptest.Server, *http.Request) {
	t.Helper()

	var lastRequest http.Request

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastRequest = *r.Clone(context.Background())

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv, &lastRequest
}

func newTestMonitor(t *testing.T, baseURL string, store *memCacheStore, sender *recordingSender, policyName string) *Monitor {
	t.Helper()

	policy, err := PolicyByName(policyName)
	require.NoError(t, err)

	m, err := New(Config{
		BaseURL:   baseURL,
		Section:   "coffee",
		UserAgent: "Mozilla/5.0",
		CacheKey:  "coffees",

		CollectionURL: "https://shop.example.com/collections/coffee",
		Timezone:      "UTC",
	}, scraper.New(fetcher.NewHTTPFetcher()), store, sender, policy, nil)
	require.NoError(t, err)

	return m
}

// ============================================================================
// 테스트
// ============================================================================

const listingBody = `{
	"products": [
		{
			"title": "Bravo - Instant Coffee",
			"handle": "bravo",
			"published_at": "2024-01-10T00:00:00Z",
			"variants": [{"title": "Default", "available": true, "price": "12.00"}],
			"images": [{"src": "https://cdn.example.com/bravo.jpg"}]
		},
		{
			"title": "Alpha - Instant Coffee",
			"handle": "alpha",
			"published_at": "2024-01-15T00:00:00Z",
			"variants": [{"title": "Default", "available": true, "price": "9.50"}],
			"images": []
		},
		{
			"title": "Gone - Instant Coffee",
			"handle": "gone",
			"published_at": "2024-01-01T00:00:00Z",
			"variants": [{"title": "Default", "available": false, "price": "10.00"}],
			"images": []
		}
	]
}`

func TestMonitorListingURL(t *testing.T) {
	t.Parallel()

	m := newTestMonitor(t, "https://shop.example.com/", newMemCacheStore(), &recordingSender{}, PolicySubset)

	// BaseURL 끝의 슬래시는 중복되지 않아야 합니다.
	assert.Equal(t, "https://shop.example.com/collections/coffee/products.json", m.ListingURL())
}

func TestMonitorRunTick(t *testing.T) {
	t.Parallel()

	t.Run("first run notifies and persists", func(t *testing.T) {
		t.Parallel()

		srv, lastRequest := newListingServer(t, listingBody)
		store := newMemCacheStore()
		sender := &recordingSender{}

		m := newTestMonitor(t, srv.URL, store, sender, PolicySubset)

		require.NoError(t, m.RunTick(context.Background()))

		// 요청 검증: 경로와 User-Agent 헤더
		assert.Equal(t, "/collections/coffee/products.json", lastRequest.URL.Path)
		assert.Equal(t, "Mozilla/5.0", lastRequest.Header.Get("User-Agent"))

		// 알림 검증: 제목순 정렬, 접미사 제거, 가용 상품만 포함
		notified := sender.notifiedMessages()
		require.Len(t, notified, 1)
		assert.Contains(t, notified[0], "- ☕ Alpha ($9.50)")
		assert.Contains(t, notified[0], "- ☕ Bravo ($12.00)")
		assert.NotContains(t, notified[0], "Gone")
		assert.Contains(t, notified[0], "last changed on January 15, 2024 UTC")

		// 스냅샷 저장 검증
		assert.Equal(t, `["alpha","bravo"]`, store.m["coffees"])
	})

	t.Run("unchanged run is suppressed", func(t *testing.T) {
		t.Parallel()

		srv, _ := newListingServer(t, listingBody)
		store := newMemCacheStore()
		store.m["coffees"] = `["alpha","bravo"]`
		sender := &recordingSender{}

		m := newTestMonitor(t, srv.URL, store, sender, PolicySubset)

		require.NoError(t, m.RunTick(context.Background()))
		assert.Empty(t, sender.notifiedMessages())
	})

	t.Run("new handle triggers a notification", func(t *testing.T) {
		t.Parallel()

		srv, _ := newListingServer(t, listingBody)
		store := newMemCacheStore()
		store.m["coffees"] = `["alpha"]`
		sender := &recordingSender{}

		m := newTestMonitor(t, srv.URL, store, sender, PolicySubset)

		require.NoError(t, m.RunTick(context.Background()))
		require.Len(t, sender.notifiedMessages(), 1)
		assert.Equal(t, `["alpha","bravo"]`, store.m["coffees"])
	})

	t.Run("corrupt stored snapshot behaves like a first run", func(t *testing.T) {
		t.Parallel()

		srv, _ := newListingServer(t, listingBody)
		store := newMemCacheStore()
		store.m["coffees"] = "not json"
		sender := &recordingSender{}

		m := newTestMonitor(t, srv.URL, store, sender, PolicySubset)

		require.NoError(t, m.RunTick(context.Background()))
		assert.Len(t, sender.notifiedMessages(), 1)
	})

	t.Run("contract violation fails the run", func(t *testing.T) {
		t.Parallel()

		srv, _ := newListingServer(t, `{"products": [
			{"handle": "broken", "variants": [
				{"available": true, "price": "1.00"},
				{"available": false, "price": "2.00"}
			]}
		]}`)
		store := newMemCacheStore()
		sender := &recordingSender{}

		m := newTestMonitor(t, srv.URL, store, sender, PolicySubset)

		err := m.RunTick(context.Background())
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ParsingFailed))
		assert.Empty(t, sender.notifiedMessages())
		assert.Empty(t, store.m)
	})

	t.Run("notify failure fails the run before persisting", func(t *testing.T) {
		t.Parallel()

		srv, _ := newListingServer(t, listingBody)
		store := newMemCacheStore()
		sender := &recordingSender{notifyErr: errors.New("webhook down")}

		m := newTestMonitor(t, srv.URL, store, sender, PolicySubset)

		err := m.RunTick(context.Background())
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ExecutionFailed))

		// 발송이 실패한 실행에서는 스냅샷이 저장되지 않아야 합니다.
		assert.Empty(t, store.m)
	})

	t.Run("save failure does not fail the run", func(t *testing.T) {
		t.Parallel()

		srv, _ := newListingServer(t, listingBody)
		store := newMemCacheStore()
		store.saveErr = errors.New("disk full")
		sender := &recordingSender{}

		m := newTestMonitor(t, srv.URL, store, sender, PolicySubset)

		// 알림은 이미 발송되었으므로 저장 실패는 실행 실패로 이어지지 않습니다.
		require.NoError(t, m.RunTick(context.Background()))
		assert.Len(t, sender.notifiedMessages(), 1)
	})

	t.Run("load failure fails the run", func(t *testing.T) {
		t.Parallel()

		srv, _ := newListingServer(t, listingBody)
		store := newMemCacheStore()
		store.loadErr = errors.New("io error")
		sender := &recordingSender{}

		m := newTestMonitor(t, srv.URL, store, sender, PolicySubset)

		require.Error(t, m.RunTick(context.Background()))
		assert.Empty(t, sender.notifiedMessages())
	})

	t.Run("nonempty subset policy does not persist the empty set", func(t *testing.T) {
		t.Parallel()

		srv, _ := newListingServer(t, `{"products": []}`)
		store := newMemCacheStore()
		store.m["coffees"] = `["alpha"]`
		sender := &recordingSender{}

		m := newTestMonitor(t, srv.URL, store, sender, PolicyNonEmptySubset)

		require.NoError(t, m.RunTick(context.Background()))

		// 모든 상품이 사라졌으므로 알림은 발송되지만,
		require.Len(t, sender.notifiedMessages(), 1)
		assert.Contains(t, sender.notifiedMessages()[0], "There are no coffees available right now.")

		// 빈 집합은 저장되지 않고 마지막 비어있지 않은 스냅샷이 유지됩니다.
		assert.Equal(t, `["alpha"]`, store.m["coffees"])
	})
}
