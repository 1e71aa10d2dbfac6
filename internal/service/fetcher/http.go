package fetcher

import (
	"net/http"
	"time"
)

// defaultUserAgent User-Agent가 설정되지 않은 요청에 자동으로 추가되는 기본값입니다.
const defaultUserAgent = "Mozilla/5.0"

// HTTPFetcher 기본 타임아웃(30초) 및 User-Agent 자동 추가 기능이 내장된 HTTP 클라이언트 구현체입니다.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// 컴파일 타임에 인터페이스 구현 여부를 검증합니다.
var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher 기본 타임아웃(30초) 설정이 포함된 새로운 HTTPFetcher 인스턴스를 생성합니다.
func NewHTTPFetcher() *HTTPFetcher {
	return NewHTTPFetcherWithUserAgent(defaultUserAgent)
}

// NewHTTPFetcherWithUserAgent 기본 User-Agent를 지정하여 HTTPFetcher 인스턴스를 생성합니다.
// 빈 문자열이 주어지면 기본값을 사용합니다.
func NewHTTPFetcherWithUserAgent(userAgent string) *HTTPFetcher {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		userAgent: userAgent,
	}
}

// Do 커스텀 HTTP 요청을 실행합니다.
// 요청 헤더에 User-Agent가 없는 경우, 기본값을 자동으로 추가하여 봇 차단을 방지합니다.
func (h *HTTPFetcher) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", h.userAgent)
	}
	return h.client.Do(req)
}
