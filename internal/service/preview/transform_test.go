package preview

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	apperrors "github.com/darkkaiser/coffee-watcher/internal/pkg/errors"
	"github.com/darkkaiser/coffee-watcher/internal/service/fetcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTransformServer 수신된 요청의 경로와 파라미터를 기록하고 고정된 이미지 바이트를 반환하는
// 변환 서비스 테스트 서버를 생성합니다.
func newTransformServer(t *testing.T) (*httptest.Server, func() (string, map[string]any)) {
	t.Helper()

	var mu sync.Mutex
	var lastPath string
	var lastParams map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var params map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))

		mu.Lock()
		lastPath = r.URL.Path
		lastParams = params
		mu.Unlock()

		_, _ = w.Write([]byte("transformed-bytes"))
	}))
	t.Cleanup(srv.Close)

	return srv, func() (string, map[string]any) {
		mu.Lock()
		defer mu.Unlock()
		return lastPath, lastParams
	}
}

func TestTransformClient(t *testing.T) {
	t.Parallel()

	t.Run("Resize", func(t *testing.T) {
		t.Parallel()

		srv, last := newTransformServer(t)
		client := NewTransformClient(srv.URL, fetcher.NewHTTPFetcher())

		result, err := client.Resize(context.Background(), []byte("source"), 340, 120, FitFill)
		require.NoError(t, err)
		assert.Equal(t, []byte("transformed-bytes"), result)

		path, params := last()
		assert.Equal(t, "/resize", path)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("source")), params["image"])
		assert.Equal(t, float64(340), params["width"])
		assert.Equal(t, float64(120), params["height"])
		assert.Equal(t, FitFill, params["fit"])
	})

	t.Run("Draw", func(t *testing.T) {
		t.Parallel()

		srv, last := newTransformServer(t)
		client := NewTransformClient(srv.URL, fetcher.NewHTTPFetcher())

		_, err := client.Draw(context.Background(), []byte("canvas"), []byte("tile"), 10, 16)
		require.NoError(t, err)

		path, params := last()
		assert.Equal(t, "/draw", path)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("canvas")), params["image"])
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("tile")), params["overlay"])
		assert.Equal(t, float64(10), params["left"])
		assert.Equal(t, float64(16), params["top"])
	})

	t.Run("Encode", func(t *testing.T) {
		t.Parallel()

		srv, last := newTransformServer(t)
		client := NewTransformClient(srv.URL, fetcher.NewHTTPFetcher())

		_, err := client.Encode(context.Background(), []byte("canvas"), "avif")
		require.NoError(t, err)

		path, params := last()
		assert.Equal(t, "/encode", path)
		assert.Equal(t, "avif", params["format"])
	})

	t.Run("error status from the transform service", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
		}))
		t.Cleanup(srv.Close)

		client := NewTransformClient(srv.URL, fetcher.NewHTTPFetcher())

		_, err := client.Encode(context.Background(), []byte("canvas"), "avif")
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ExecutionFailed))
	})

	t.Run("unreachable transform service", func(t *testing.T) {
		t.Parallel()

		client := NewTransformClient("http://127.0.0.1:1", fetcher.NewHTTPFetcher())

		_, err := client.Resize(context.Background(), []byte("source"), 10, 10, FitInside)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.Unavailable))
	})
}
