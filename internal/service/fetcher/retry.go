package fetcher

import (
	"context"
	"crypto/x509"
	"errors"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	apperrors "github.com/darkkaiser/coffee-watcher/internal/pkg/errors"
	applog "github.com/darkkaiser/coffee-watcher/pkg/log"
)

const (
	// maxAllowedRetries 허용 가능한 최대 재시도 횟수입니다.
	maxAllowedRetries = 10

	// defaultMaxRetryDelay 재시도 대기 시간의 최대값 기본값(30초)입니다.
	defaultMaxRetryDelay = 30 * time.Second
)

// RetryFetcher HTTP 요청 실패 시 자동으로 재시도를 수행하는 미들웨어입니다.
//
// 주요 특징:
//   - 지수 백오프(Exponential Backoff): 재시도 간격을 지수적으로 증가시켜 서버 부하를 분산
//   - Jitter: 무작위 지연을 추가하여 동시 다발적인 재시도로 인한 "Thundering Herd" 문제 방지
//   - 멱등성 검증: 비멱등 메서드(POST, PATCH)는 재시도에서 제외
//   - 컨텍스트 취소 감지: 요청 취소 시 즉시 재시도 중단
type RetryFetcher struct {
	delegate Fetcher

	maxRetries    int           // 최대 재시도 횟수 (0: 재시도 안 함)
	minRetryDelay time.Duration // 지수 백오프의 시작점
	maxRetryDelay time.Duration // 지수 백오프 증가 시 상한선
}

// 컴파일 타임에 인터페이스 구현 여부를 검증합니다.
var _ Fetcher = (*RetryFetcher)(nil)

// NewRetryFetcher 새로운 RetryFetcher 인스턴스를 생성합니다.
// 설정값은 허용 범위로 정규화됩니다.
func NewRetryFetcher(delegate Fetcher, maxRetries int, minRetryDelay, maxRetryDelay time.Duration) *RetryFetcher {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if maxRetries > maxAllowedRetries {
		// 과도한 재시도로 인한 지연 방지
		maxRetries = maxAllowedRetries
	}

	if minRetryDelay < time.Second {
		// 너무 짧은 대기 시간(1초 미만)은 서버에 부담을 줄 수 있으므로 1초로 보정
		minRetryDelay = 1 * time.Second
	}
	if maxRetryDelay == 0 {
		maxRetryDelay = defaultMaxRetryDelay
	}
	if maxRetryDelay < minRetryDelay {
		maxRetryDelay = minRetryDelay
	}

	return &RetryFetcher{
		delegate:      delegate,
		maxRetries:    maxRetries,
		minRetryDelay: minRetryDelay,
		maxRetryDelay: maxRetryDelay,
	}
}

// Do HTTP 요청을 수행하며, 실패 시 설정된 정책에 따라 자동으로 재시도합니다.
//
// 재시도 대상:
//   - 네트워크 오류 (타임아웃, 연결 실패 등)
//   - 5xx 서버 에러 (단, 501/505/511 제외)
//   - 429 Too Many Requests, 408 Request Timeout
//
// 재시도 제외:
//   - 컨텍스트 취소 (context.Canceled)
//   - 4xx 클라이언트 에러
//   - 비멱등 메서드(POST, PATCH)의 요청
func (f *RetryFetcher) Do(req *http.Request) (*http.Response, error) {
	effectiveMaxRetries := f.maxRetries

	// 비멱등 메서드는 재시도 시 데이터 중복 생성/수정 위험이 있으므로 재시도 비활성화!!
	if !isIdempotentMethod(req.Method) {
		effectiveMaxRetries = 0
	}

	// 재시도 시 요청 본문을 다시 읽어야 하므로, GetBody가 없으면 재시도 기능만 비활성화합니다.
	if req.Body != nil && req.GetBody == nil && f.maxRetries > 0 {
		applog.WithComponentAndFields("fetcher", applog.Fields{
			"url":    req.URL.Redacted(),
			"method": req.Method,
		}).Warn("재시도 비활성화: 요청 본문 재생성 불가 (GetBody nil)")

		effectiveMaxRetries = 0
	}

	var lastErr error

	for i := 0; i <= effectiveMaxRetries; i++ {
		if i > 0 {
			// 지수 백오프 계산: delay = minRetryDelay * 2^(retry-1)
			delay := f.minRetryDelay * time.Duration(1<<(i-1))
			if delay > f.maxRetryDelay {
				delay = f.maxRetryDelay
			}

			// Full Jitter: 0 ~ 계산된 delay 사이의 값을 무작위로 선택
			if delay > 0 {
				delay = time.Duration(rand.Int64N(int64(delay) + 1))
			}
			if delay < time.Millisecond {
				delay = f.minRetryDelay
			}

			applog.WithComponentAndFields("fetcher", applog.Fields{
				"url":               req.URL.Redacted(),
				"retry":             i,
				"max_retries":       f.maxRetries,
				"remaining_retries": effectiveMaxRetries - i,
				"delay":             delay.String(),
				"error":             lastErr,
			}).Warn("재시도 대기 중: 일시적 오류로 인해 요청 재시도를 준비합니다")

			timer := time.NewTimer(delay)
			select {
			case <-req.Context().Done():
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				return nil, req.Context().Err()

			case <-timer.C:
			}

			// 이전 시도에서 소진된 Body를 다시 읽을 수 있도록 복구합니다.
			// 원본 요청 객체를 변경하지 않기 위해 복제본을 사용합니다.
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, apperrors.Wrap(err, apperrors.Internal, "재시도를 위한 요청 본문 재생성에 실패하였습니다.")
				}
				req = req.Clone(req.Context())
				req.Body = body
			}
		}

		resp, err := f.delegate.Do(req)

		// 에러가 없는 경우, 상태 코드를 기반으로 재시도 여부를 결정합니다.
		if err == nil {
			if !isRetriableStatus(resp.StatusCode) {
				return resp, nil
			}

			lastErr = apperrors.Newf(apperrors.Unavailable, "서버가 일시적 오류 상태 코드를 반환하였습니다. (%s)", resp.Status)

			// 커넥션 재사용을 위해 응답 객체의 Body를 안전하게 비우고 닫음
			drainAndCloseBody(resp.Body)
			continue
		}

		// 전체 요청 제한 시간(Deadline)이 초과된 경우, 재시도를 해도 성공할 수 없으므로 즉시 중단합니다.
		if errors.Is(err, context.DeadlineExceeded) && req.Context().Err() != nil {
			return nil, err
		}

		if !isRetriable(err) {
			return nil, err
		}

		lastErr = err
	}

	return nil, apperrors.Wrapf(lastErr, apperrors.Unavailable, "최대 재시도 횟수(%d회)를 초과하였습니다.", f.maxRetries)
}

// isRetriableStatus 응답 상태 코드가 재시도 대상인지 판단합니다.
func isRetriableStatus(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests || statusCode == http.StatusRequestTimeout {
		return true
	}

	if statusCode >= 500 {
		// 501, 505, 511은 영구적인 문제이므로 재시도해도 성공할 가능성이 낮음!
		switch statusCode {
		case http.StatusNotImplemented, http.StatusHTTPVersionNotSupported, http.StatusNetworkAuthenticationRequired:
			return false
		default:
			return true
		}
	}

	return false
}

// isRetriable 발생한 에러가 재시도 가능한 일시적인 오류인지 판단합니다.
func isRetriable(err error) bool {
	if err == nil {
		return false
	}

	// context.Canceled는 사용자가 명시적으로 요청을 취소한 것이므로 재시도 제외!
	if errors.Is(err, context.Canceled) {
		return false
	}

	// 인증서 에러(유효기간 만료, 신뢰할 수 없는 CA 등)는 재시도해도 해결되지 않는 문제로 간주!
	var x509HostnameErr x509.HostnameError
	var x509UnknownAuthorityErr x509.UnknownAuthorityError
	var x509CertificateInvalidErr x509.CertificateInvalidError
	if errors.As(err, &x509HostnameErr) || errors.As(err, &x509UnknownAuthorityErr) || errors.As(err, &x509CertificateInvalidErr) {
		return false
	}

	// 타임아웃은 일시적인 네트워크 지연으로 간주하여 재시도
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// 명확한 비즈니스 로직 에러는 재시도해도 동일한 결과가 나오므로 재시도 제외!
	if apperrors.Is(err, apperrors.ExecutionFailed) ||
		apperrors.Is(err, apperrors.InvalidInput) ||
		apperrors.Is(err, apperrors.ParsingFailed) ||
		apperrors.Is(err, apperrors.NotFound) {
		return false
	}

	// 명확한 실패 사유가 없다면 일시적 오류(DNS 조회 실패, 연결 거부 등)로 간주하고 재시도합니다.
	return true
}

// isIdempotentMethod 지정된 HTTP 메서드가 멱등한지(재시도가 안전한지) 여부를 반환합니다.
// 참고: RFC 7231 Section 4.2.2 (Idempotent Methods)
func isIdempotentMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}
