package middleware

import (
	"time"

	applog "github.com/darkkaiser/coffee-watcher/pkg/log"
	"github.com/labstack/echo/v4"
)

// componentHTTPLogger HTTP 로깅 미들웨어의 로깅용 컴포넌트 이름
const componentHTTPLogger = "api.middleware.http_logger"

// HTTPLogger 모든 HTTP 요청과 응답을 구조화된 로그로 기록하는 미들웨어를 반환합니다.
//
// 쿼리 문자열에는 서명 토큰 등 민감한 값이 포함될 수 있으므로
// 마스킹 처리 후 기록합니다.
func HTTPLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				// 에러 핸들러가 상태 코드를 기록하도록 먼저 반영합니다.
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			fields := applog.Fields{
				"method":     req.Method,
				"path":       req.URL.Path,
				"status":     res.Status,
				"latency_ms": time.Since(start).Milliseconds(),
				"remote_ip":  c.RealIP(),
			}
			if query := req.URL.RawQuery; query != "" {
				fields["query"] = applog.MaskSensitiveData(query)
			}
			if requestID := res.Header().Get(echo.HeaderXRequestID); requestID != "" {
				fields["request_id"] = requestID
			}

			logger := applog.WithComponentAndFields(componentHTTPLogger, fields)

			switch {
			case res.Status >= 500:
				logger.Error("HTTP 요청 처리 실패")
			case res.Status >= 400:
				logger.Warn("HTTP 요청 거부")
			default:
				logger.Info("HTTP 요청 처리")
			}

			return err
		}
	}
}
