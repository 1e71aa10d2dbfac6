// Package api 미리보기 합성 이미지를 제공하는 HTTP 서버를 구현합니다.
package api

import (
	"context"
	"net/http"

	apperrors "github.com/darkkaiser/coffee-watcher/internal/pkg/errors"
	"github.com/darkkaiser/coffee-watcher/internal/service/preview"
	applog "github.com/darkkaiser/coffee-watcher/pkg/log"
	"github.com/labstack/echo/v4"
)

// component API 서비스 로깅용 컴포넌트 이름
const component = "api"

// payloadQueryParam 서명 토큰을 담는 쿼리 파라미터 이름
const payloadQueryParam = "payload"

// Renderer 미리보기 이미지 렌더링 기능을 추상화한 인터페이스입니다.
type Renderer interface {
	// Render 이미지 URL 목록을 하나의 합성 이미지로 렌더링합니다.
	Render(ctx context.Context, images []string) ([]byte, error)

	// ContentType 렌더링 결과물의 Content-Type 헤더 값을 반환합니다.
	ContentType() string
}

// errorResponse 에러 응답의 JSON 본문입니다.
type errorResponse struct {
	Error string `json:"error"`
}

// Handler 미리보기 엔드포인트의 HTTP 핸들러입니다.
type Handler struct {
	tokens   *preview.TokenCodec
	renderer Renderer
}

// NewHandler 새로운 Handler를 생성합니다.
func NewHandler(tokens *preview.TokenCodec, renderer Renderer) *Handler {
	return &Handler{
		tokens:   tokens,
		renderer: renderer,
	}
}

// GetPreview GET / 요청을 처리합니다.
//
// payload 쿼리 파라미터의 서명 토큰을 검증한 후, 토큰에 담긴 이미지 URL들을
// 하나의 합성 이미지로 렌더링하여 반환합니다. 토큰이 없거나 유효하지 않으면
// 400 Bad Request를 반환합니다.
func (h *Handler) GetPreview(c echo.Context) error {
	token := c.QueryParam(payloadQueryParam)
	if token == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "payload 파라미터가 필요합니다."})
	}

	payload, err := h.tokens.Verify(token)
	if err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"remote_ip": c.RealIP(),
		}).WithError(err).Warn("미리보기 요청 거부: 토큰 검증 실패")

		return c.JSON(http.StatusBadRequest, errorResponse{Error: "유효하지 않은 토큰입니다."})
	}

	rendered, err := h.renderer.Render(c.Request().Context(), payload.Images)
	if err != nil {
		if apperrors.Is(err, apperrors.InvalidInput) {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "합성할 이미지가 없습니다."})
		}

		applog.WithComponent(component).WithError(err).Error("미리보기 이미지 렌더링이 실패하였습니다")

		return c.JSON(http.StatusBadGateway, errorResponse{Error: "미리보기 이미지 생성에 실패하였습니다."})
	}

	return c.Blob(http.StatusOK, h.renderer.ContentType(), rendered)
}
