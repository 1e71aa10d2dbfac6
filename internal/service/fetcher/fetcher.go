// Package fetcher HTTP 요청 수행을 위한 클라이언트와 미들웨어를 제공합니다.
//
// Fetcher 인터페이스를 중심으로 재시도(RetryFetcher), 상태 코드 검사 등의
// 기능을 미들웨어 체인 형태로 조합하여 사용합니다.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/darkkaiser/coffee-watcher/internal/pkg/errors"
)

// Fetcher HTTP 요청을 수행하는 인터페이스
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// Get 지정된 URL로 HTTP GET 요청을 전송합니다.
// Fetcher 인터페이스의 구현체가 공통으로 사용할 수 있는 헬퍼 함수입니다.
func Get(ctx context.Context, f Fetcher, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return f.Do(req)
}

// FetchBytes 지정된 URL로 HTTP GET 요청을 보내고 응답 본문 전체를 읽어 반환합니다.
// 응답 크기는 maxBytes로 제한되며, 초과 시 에러를 반환합니다.
func FetchBytes(ctx context.Context, f Fetcher, url string, maxBytes int64) ([]byte, error) {
	resp, err := Get(ctx, f, url)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.Unavailable, "페이지(%s) 요청 중 네트워크 또는 클라이언트 에러가 발생했습니다.", url)
	}
	defer resp.Body.Close() // 응답을 받은 즉시 defer 설정하여 메모리 누수 방지

	if err := CheckResponseStatus(resp); err != nil {
		return nil, err
	}

	// maxBytes+1 만큼 읽어 응답이 제한 크기를 초과하는지 감지합니다.
	lr := io.LimitReader(resp.Body, maxBytes+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.System, "페이지(%s)의 응답 본문 읽기가 실패하였습니다.", url)
	}
	if int64(len(data)) > maxBytes {
		return nil, apperrors.Newf(apperrors.ExecutionFailed, "페이지(%s)의 응답 크기가 허용치(%d바이트)를 초과하였습니다.", url, maxBytes)
	}

	return data, nil
}

// CheckResponseStatus 응답 상태 코드가 200 OK인지 검사합니다.
// 허용되지 않은 상태 코드인 경우, 디버깅을 위해 응답 본문 일부를 포함한 에러를 반환합니다.
func CheckResponseStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	// 디버깅 편의를 위해 응답 본문 일부만 읽어서 에러 객체에 포함시킵니다.
	var bodySnippet string
	if resp.Body != nil {
		lr := io.LimitReader(resp.Body, 4096)
		bodyBytes, _ := io.ReadAll(lr)
		if len(bodyBytes) > 0 {
			bodySnippet = string(bodyBytes)
		}
	}

	errType := apperrors.ExecutionFailed
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		errType = apperrors.Unavailable
	} else if resp.StatusCode == http.StatusNotFound {
		errType = apperrors.NotFound
	}

	return apperrors.New(errType, fmt.Sprintf("서버가 정상 응답(200 OK)이 아닌 상태 코드를 반환하였습니다. (%s, 본문: %s)", resp.Status, bodySnippet))
}

// drainAndCloseBody 커넥션 재사용을 위해 응답 객체의 Body를 안전하게 비우고 닫습니다.
func drainAndCloseBody(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
