package middleware

import (
	"fmt"
	"net/http"
	"sync"

	applog "github.com/darkkaiser/coffee-watcher/pkg/log"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// componentRateLimit 속도 제한 미들웨어의 로깅용 컴포넌트 이름
const componentRateLimit = "api.middleware.rate_limit"

const (
	// maxIPRateLimiters 서버가 메모리에 유지하는 최대 고유 IP 수입니다.
	// 임계값 도달 시 기존 항목을 하나 축출하여 메모리 사용량 증가를 막습니다.
	maxIPRateLimiters = 10000

	// retryAfterSeconds 속도 제한 초과 시 클라이언트에게 제안하는 대기 시간(초)입니다.
	retryAfterSeconds = "1"
)

// ErrRateLimitExceeded 속도 제한 초과 시 반환되는 HTTP 에러
var ErrRateLimitExceeded = echo.NewHTTPError(http.StatusTooManyRequests, "요청 속도 제한을 초과하였습니다. 잠시 후 다시 시도해주세요.")

// ipRateLimiter IP 주소별 Rate Limiter를 관리하는 구조체입니다.
// Token Bucket 알고리즘을 사용하여 IP별로 독립적인 요청 제한을 적용합니다.
type ipRateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit // 초당 허용 요청 수
	burst    int        // 버스트 허용량
}

func newIPRateLimiter(requestsPerSecond int, burst int) *ipRateLimiter {
	return &ipRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

// getLimiter 특정 IP의 Rate Limiter를 반환합니다. 없으면 새로 생성합니다.
func (i *ipRateLimiter) getLimiter(ip string) *rate.Limiter {
	i.mu.RLock()
	limiter, exists := i.limiters[ip]
	i.mu.RUnlock()

	if exists {
		return limiter
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	// Double-check: 다른 고루틴이 이미 생성했을 수 있음
	limiter, exists = i.limiters[ip]
	if exists {
		return limiter
	}

	// 메모리 보호: 최대 개수 초과 시 하나 제거 (Go Map 순회는 랜덤이므로 간이 LRU 효과)
	if len(i.limiters) >= maxIPRateLimiters {
		for oldIP := range i.limiters {
			delete(i.limiters, oldIP)
			break
		}
	}

	limiter = rate.NewLimiter(i.rate, i.burst)
	i.limiters[ip] = limiter

	return limiter
}

// RateLimit IP 기반 Rate Limiting 미들웨어를 반환합니다.
//
// Token Bucket 알고리즘을 사용하여 IP별로 요청 속도를 제한합니다.
// 제한 초과 시 HTTP 429 (Too Many Requests)를 반환하고 Retry-After 헤더를 포함합니다.
func RateLimit(requestsPerSecond int, burst int) echo.MiddlewareFunc {
	if requestsPerSecond <= 0 {
		panic(fmt.Sprintf("RateLimit: requestsPerSecond는 양수여야 합니다 (현재값: %d)", requestsPerSecond))
	}
	if burst <= 0 {
		panic(fmt.Sprintf("RateLimit: burst는 양수여야 합니다 (현재값: %d)", burst))
	}

	limiter := newIPRateLimiter(requestsPerSecond, burst)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()

			if !limiter.getLimiter(ip).Allow() {
				applog.WithComponentAndFields(componentRateLimit, applog.Fields{
					"remote_ip": ip,
					"path":      c.Request().URL.Path,
					"method":    c.Request().Method,
				}).Warn("요청 차단: 속도 제한(Rate Limit)을 초과하였습니다")

				c.Response().Header().Set("Retry-After", retryAfterSeconds)

				return ErrRateLimitExceeded
			}

			return next(c)
		}
	}
}
