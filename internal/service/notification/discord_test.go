package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	apperrors "github.com/darkkaiser/coffee-watcher/internal/pkg/errors"
	"github.com/darkkaiser/coffee-watcher/internal/service/fetcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newWebhookServer 수신된 메시지 본문(content)을 기록하는 Webhook 테스트 서버를 생성합니다.
func newWebhookServer(t *testing.T, statusCode int) (*httptest.Server, func() []string) {
	t.Helper()

	var mu sync.Mutex
	var received []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload discordWebhookPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		mu.Lock()
		received = append(received, payload.Content)
		mu.Unlock()

		w.WriteHeader(statusCode)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), received...)
	}
}

func TestDiscordNotifierSend(t *testing.T) {
	t.Parallel()

	t.Run("posts the message content as JSON", func(t *testing.T) {
		t.Parallel()

		srv, received := newWebhookServer(t, http.StatusNoContent)

		n := newDiscordNotifier("discord-test", srv.URL, fetcher.NewHTTPFetcher())

		require.NoError(t, n.Send(context.Background(), "☕ hello"))
		assert.Equal(t, []string{"☕ hello"}, received())
	})

	t.Run("long message is sent in multiple chunks", func(t *testing.T) {
		t.Parallel()

		srv, received := newWebhookServer(t, http.StatusNoContent)

		n := newDiscordNotifier("discord-test", srv.URL, fetcher.NewHTTPFetcher())

		var lines []string
		for range 200 {
			lines = append(lines, strings.Repeat("a", 40))
		}
		message := strings.Join(lines, "\n")

		require.NoError(t, n.Send(context.Background(), message))

		chunks := received()
		assert.Greater(t, len(chunks), 1)
		for _, chunk := range chunks {
			assert.LessOrEqual(t, len(chunk), discordMaxMessageLength)
		}

		// 분할되어도 내용은 모두 전달되어야 합니다.
		assert.Equal(t, message, strings.Join(chunks, "\n"))
	})

	t.Run("failure status code returns an error", func(t *testing.T) {
		t.Parallel()

		srv, _ := newWebhookServer(t, http.StatusInternalServerError)

		n := newDiscordNotifier("discord-test", srv.URL, fetcher.NewHTTPFetcher())

		err := n.Send(context.Background(), "hello")
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ExecutionFailed))
	})

	t.Run("unreachable webhook returns an error", func(t *testing.T) {
		t.Parallel()

		n := newDiscordNotifier("discord-test", "http://127.0.0.1:1", fetcher.NewHTTPFetcher())

		err := n.Send(context.Background(), "hello")
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.Unavailable))
	})
}
