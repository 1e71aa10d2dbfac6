package api

import (
	"time"

	appmiddleware "github.com/darkkaiser/coffee-watcher/internal/service/api/middleware"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	// defaultReadHeaderTimeout 요청 헤더 읽기 제한 시간
	defaultReadHeaderTimeout = 5 * time.Second

	// defaultReadTimeout 요청 본문 읽기 제한 시간
	defaultReadTimeout = 10 * time.Second

	// defaultWriteTimeout 응답 쓰기 제한 시간
	// 렌더링은 외부 변환 서비스와 원본 이미지 다운로드를 포함하므로 여유있게 설정합니다.
	defaultWriteTimeout = 120 * time.Second

	// defaultIdleTimeout Keep-Alive 연결 유휴 제한 시간
	defaultIdleTimeout = 60 * time.Second

	// defaultRateLimitPerSecond IP별 초당 허용 요청 수
	defaultRateLimitPerSecond = 5

	// defaultRateLimitBurst IP별 버스트 허용량
	defaultRateLimitBurst = 10
)

// HTTPServerConfig HTTP 서버 생성에 필요한 설정을 정의합니다.
type HTTPServerConfig struct {
	// Debug Echo 프레임워크의 디버그 모드 활성화 여부
	Debug bool
}

// NewHTTPServer 설정된 미들웨어를 포함한 Echo 인스턴스를 생성합니다.
//
// 미들웨어는 다음 순서로 적용됩니다.
//  1. PanicRecovery - 패닉 복구 및 로깅
//  2. RequestID - 요청 추적용 고유 ID 부여
//  3. HTTPLogger - 구조화된 요청/응답 로깅
//  4. RateLimit - IP 기반 요청 속도 제한
//
// 라우트 설정은 포함되지 않으며, 반환된 Echo 인스턴스에 별도로 설정해야 합니다.
func NewHTTPServer(cfg HTTPServerConfig) *echo.Echo {
	e := echo.New()

	e.Debug = cfg.Debug
	e.HideBanner = true

	// 보안 및 리소스 관리를 위한 HTTP 서버 타임아웃 설정
	e.Server.ReadTimeout = defaultReadTimeout
	e.Server.ReadHeaderTimeout = defaultReadHeaderTimeout
	e.Server.WriteTimeout = defaultWriteTimeout
	e.Server.IdleTimeout = defaultIdleTimeout

	e.Use(appmiddleware.PanicRecovery())
	e.Use(middleware.RequestID())
	e.Use(appmiddleware.HTTPLogger())
	e.Use(appmiddleware.RateLimit(defaultRateLimitPerSecond, defaultRateLimitBurst))

	return e
}

// SetupRoutes 미리보기 엔드포인트의 라우트를 등록합니다.
func SetupRoutes(e *echo.Echo, handler *Handler) {
	e.GET("/", handler.GetPreview)
}
