package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	apperrors "github.com/darkkaiser/coffee-watcher/internal/pkg/errors"
	"github.com/darkkaiser/coffee-watcher/internal/service/preview"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRenderer 고정된 응답을 반환하는 Renderer 스텁입니다.
type stubRenderer struct {
	rendered  []byte
	renderErr error

	gotImages []string
}

func (r *stubRenderer) Render(_ context.Context, images []string) ([]byte, error) {
	r.gotImages = images
	if r.renderErr != nil {
		return nil, r.renderErr
	}
	return r.rendered, nil
}

func (r *stubRenderer) ContentType() string {
	return "image/avif"
}

func newPreviewRequest(t *testing.T, handler *Handler, token string) *httptest.ResponseRecorder {
	t.Helper()

	target := "/"
	if token != "" {
		target += "?payload=" + url.QueryEscape(token)
	}

	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()

	e := echo.New()
	c := e.NewContext(req, rec)

	require.NoError(t, handler.GetPreview(c))

	return rec
}

func TestHandlerGetPreview(t *testing.T) {
	t.Parallel()

	codec, err := preview.NewTokenCodec("test-secret")
	require.NoError(t, err)

	signedToken := func(t *testing.T, images ...string) string {
		t.Helper()

		token, err := codec.Sign(preview.Payload{Images: images})
		require.NoError(t, err)
		return token
	}

	t.Run("renders the composite image for a valid token", func(t *testing.T) {
		t.Parallel()

		renderer := &stubRenderer{rendered: []byte("image-bytes")}
		handler := NewHandler(codec, renderer)

		rec := newPreviewRequest(t, handler, signedToken(t, "https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/avif", rec.Header().Get(echo.HeaderContentType))
		assert.Equal(t, "image-bytes", rec.Body.String())

		// 토큰에 담긴 이미지 목록이 순서 그대로 렌더러에 전달되어야 합니다.
		assert.Equal(t, []string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"}, renderer.gotImages)
	})

	t.Run("missing payload", func(t *testing.T) {
		t.Parallel()

		handler := NewHandler(codec, &stubRenderer{})

		rec := newPreviewRequest(t, handler, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		t.Parallel()

		handler := NewHandler(codec, &stubRenderer{})

		rec := newPreviewRequest(t, handler, "not-a-valid.token")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		t.Parallel()

		other, err := preview.NewTokenCodec("another-secret")
		require.NoError(t, err)

		forged, err := other.Sign(preview.Payload{Images: []string{"https://evil.example.com/x.jpg"}})
		require.NoError(t, err)

		renderer := &stubRenderer{}
		handler := NewHandler(codec, renderer)

		rec := newPreviewRequest(t, handler, forged)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		// 위조된 토큰의 이미지는 렌더러까지 도달하면 안 됩니다.
		assert.Nil(t, renderer.gotImages)
	})

	t.Run("render input error maps to 400", func(t *testing.T) {
		t.Parallel()

		renderer := &stubRenderer{renderErr: apperrors.New(apperrors.InvalidInput, "합성할 이미지가 없습니다.")}
		handler := NewHandler(codec, renderer)

		rec := newPreviewRequest(t, handler, signedToken(t))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("render failure maps to 502", func(t *testing.T) {
		t.Parallel()

		renderer := &stubRenderer{renderErr: errors.New("transform service down")}
		handler := NewHandler(codec, renderer)

		rec := newPreviewRequest(t, handler, signedToken(t, "https://cdn.example.com/a.jpg"))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}
