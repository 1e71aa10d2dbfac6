package preview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/darkkaiser/coffee-watcher/internal/pkg/errors"
	"github.com/darkkaiser/coffee-watcher/internal/service/fetcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// 테스트용 Transformer 스텁
// ============================================================================

type resizeCall struct {
	width, height int
	fit           string
}

type drawCall struct {
	left, top int
}

// fakeTransformer 호출된 연산과 파라미터를 기록하는 Transformer 스텁입니다.
type fakeTransformer struct {
	resizes []resizeCall
	draws   []drawCall
	encodes []string

	resizeErr error
	drawErr   error
	encodeErr error
}

func (f *fakeTransformer) Resize(_ context.Context, image []byte, width, height int, fit string) ([]byte, error) {
	if f.resizeErr != nil {
		return nil, f.resizeErr
	}
	f.resizes = append(f.resizes, resizeCall{width: width, height: height, fit: fit})
	return []byte(fmt.Sprintf("resized-%dx%d", width, height)), nil
}

func (f *fakeTransformer) Draw(_ context.Context, image, overlay []byte, left, top int) ([]byte, error) {
	if f.drawErr != nil {
		return nil, f.drawErr
	}
	f.draws = append(f.draws, drawCall{left: left, top: top})
	return append([]byte("drawn:"), image...), nil
}

func (f *fakeTransformer) Encode(_ context.Context, image []byte, format string) ([]byte, error) {
	if f.encodeErr != nil {
		return nil, f.encodeErr
	}
	f.encodes = append(f.encodes, format)
	return []byte("encoded"), nil
}

// newImageServer 모든 경로에 대해 더미 이미지 바이트를 반환하는 테스트 서버를 생성합니다.
func newImageServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes-" + r.URL.Path))
	}))
	t.Cleanup(srv.Close)

	return srv
}

// ============================================================================
// 테스트
// ============================================================================

func TestNewRenderer(t *testing.T) {
	t.Parallel()

	transform := &fakeTransformer{}
	f := fetcher.NewHTTPFetcher()

	tests := []struct {
		name        string
		tileSize    int
		tileSpacing int
		format      string
		wantErr     bool
	}{
		{"valid", 256, 16, "avif", false},
		{"zero spacing is allowed", 256, 0, "png", false},
		{"zero tile size", 0, 16, "avif", true},
		{"negative spacing", 256, -1, "avif", true},
		{"empty format", 256, 16, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewRenderer(transform, f, tt.tileSize, tt.tileSpacing, tt.format)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.Is(err, apperrors.InvalidInput))
				return
			}

			require.NoError(t, err)
		})
	}
}

func TestRendererContentType(t *testing.T) {
	t.Parallel()

	r, err := NewRenderer(&fakeTransformer{}, fetcher.NewHTTPFetcher(), 256, 16, "avif")
	require.NoError(t, err)

	assert.Equal(t, "image/avif", r.ContentType())
}

func TestRendererRender(t *testing.T) {
	t.Parallel()

	t.Run("composes tiles onto the canvas in order", func(t *testing.T) {
		t.Parallel()

		srv := newImageServer(t)
		transform := &fakeTransformer{}

		r, err := NewRenderer(transform, fetcher.NewHTTPFetcher(), 100, 10, "avif")
		require.NoError(t, err)

		images := []string{srv.URL + "/a.jpg", srv.URL + "/b.jpg", srv.URL + "/c.jpg"}

		rendered, err := r.Render(context.Background(), images)
		require.NoError(t, err)
		assert.Equal(t, []byte("encoded"), rendered)

		// 첫 Resize는 캔버스 생성: 가로 100*3 + 10*4 = 340, 세로 100 + 10*2 = 120
		require.Len(t, transform.resizes, 4)
		assert.Equal(t, resizeCall{width: 340, height: 120, fit: FitFill}, transform.resizes[0])

		// 나머지 Resize는 타일 축소 (비율 유지)
		for _, call := range transform.resizes[1:] {
			assert.Equal(t, resizeCall{width: 100, height: 100, fit: FitInside}, call)
		}

		// 타일은 왼쪽에서부터 spacing + i*(tile+spacing) 위치에 배치됩니다.
		assert.Equal(t, []drawCall{
			{left: 10, top: 10},
			{left: 120, top: 10},
			{left: 230, top: 10},
		}, transform.draws)

		assert.Equal(t, []string{"avif"}, transform.encodes)
	})

	t.Run("empty image list is rejected", func(t *testing.T) {
		t.Parallel()

		r, err := NewRenderer(&fakeTransformer{}, fetcher.NewHTTPFetcher(), 100, 10, "avif")
		require.NoError(t, err)

		_, err = r.Render(context.Background(), nil)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.InvalidInput))
	})

	t.Run("source download failure aborts the render", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		t.Cleanup(srv.Close)

		transform := &fakeTransformer{}
		r, err := NewRenderer(transform, fetcher.NewHTTPFetcher(), 100, 10, "avif")
		require.NoError(t, err)

		_, err = r.Render(context.Background(), []string{srv.URL + "/missing.jpg"})
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ExecutionFailed))

		// 다운로드가 실패하면 인코딩까지 진행되지 않아야 합니다.
		assert.Empty(t, transform.encodes)
	})

	t.Run("transform failure aborts the render", func(t *testing.T) {
		t.Parallel()

		srv := newImageServer(t)
		transform := &fakeTransformer{drawErr: errors.New("draw failed")}

		r, err := NewRenderer(transform, fetcher.NewHTTPFetcher(), 100, 10, "avif")
		require.NoError(t, err)

		_, err = r.Render(context.Background(), []string{srv.URL + "/a.jpg"})
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ExecutionFailed))
	})
}
