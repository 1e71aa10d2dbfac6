// Package scraper Fetcher 위에서 JSON 엔드포인트 수집을 수행하는 기능을 제공합니다.
//
// 응답 본문의 크기 제한, 문자 인코딩 변환, 엄격한(Strict) JSON 디코딩을 담당하며,
// 서버가 JSON 대신 HTML 에러 페이지를 반환하는 경우를 조기에 감지합니다.
package scraper

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"context"

	"github.com/darkkaiser/coffee-watcher/internal/service/fetcher"

	apperrors "github.com/darkkaiser/coffee-watcher/internal/pkg/errors"
	applog "github.com/darkkaiser/coffee-watcher/pkg/log"
	"golang.org/x/net/html/charset"
)

const (
	component = "scraper"

	// defaultMaxResponseBodySize 응답 본문을 읽어들일 최대 크기(10MB)입니다.
	// 악의적이거나 비정상적인 대용량 응답으로부터 메모리를 보호합니다.
	defaultMaxResponseBodySize = 10 * 1024 * 1024
)

// Scraper JSON 엔드포인트를 수집하고 구조체로 디코딩하는 인터페이스
type Scraper interface {
	// FetchJSON 지정된 URL로 HTTP GET 요청을 보내 JSON 응답을 가져오고, 지정된 구조체(v)로 디코딩합니다.
	// 진단 목적으로 원본 응답 본문을 함께 반환합니다.
	FetchJSON(ctx context.Context, rawURL string, header http.Header, v any) ([]byte, error)
}

type scraper struct {
	fetcher             fetcher.Fetcher
	maxResponseBodySize int64
}

// 컴파일 타임에 인터페이스 구현 여부를 검증합니다.
var _ Scraper = (*scraper)(nil)

// New 새로운 Scraper 인스턴스를 생성합니다.
func New(f fetcher.Fetcher) Scraper {
	return &scraper{
		fetcher:             f,
		maxResponseBodySize: defaultMaxResponseBodySize,
	}
}

// FetchJSON 지정된 URL로 HTTP GET 요청을 보내 JSON 응답을 가져오고, 지정된 구조체로 디코딩합니다.
//
// 주요 기능:
//   - 응답 검증: Content-Type 확인 및 HTML 응답 감지
//   - 메모리 보호: maxResponseBodySize 제한을 통한 대용량 응답 방어
//   - Strict Mode: JSON 데이터 뒤에 불필요한 잔여 데이터가 존재하면 에러 처리
func (s *scraper) FetchJSON(ctx context.Context, rawURL string, header http.Header, v any) ([]byte, error) {
	// 디코딩 대상(v) 검증: 결과를 담을 '구조체의 포인터'가 필요합니다.
	// 잘못된 대상이면 네트워크 요청 전에 즉시 에러를 반환하여 개발자의 실수를 조기에 알립니다.
	if v == nil {
		return nil, apperrors.New(apperrors.Internal, "JSON 디코딩 대상이 nil입니다.")
	}
	if rv := reflect.ValueOf(v); rv.Kind() != reflect.Ptr || rv.IsNil() {
		return nil, apperrors.Newf(apperrors.Internal, "JSON 디코딩 대상이 유효한 포인터가 아닙니다. (타입: %T)", v)
	}

	logger := applog.WithComponentAndFields(component, applog.Fields{
		"url": rawURL,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.Internal, "JSON 요청 생성에 실패했습니다. (URL: %s)", rawURL)
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if req.Header.Get("Accept") == "" {
		// 서버에 JSON 응답을 선호함을 알립니다.
		req.Header.Set("Accept", "application/json")
	}

	resp, err := s.fetcher.Do(req)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.Unavailable, "JSON API(%s) 요청 전송 중 에러가 발생했습니다.", rawURL)
	}
	defer resp.Body.Close() // 응답을 받은 즉시 defer 설정하여 메모리 누수 방지

	if err := fetcher.CheckResponseStatus(resp); err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")

	// JSON API를 호출했는데 HTML 페이지가 반환되는 경우는 잘못된 엔드포인트 호출이나
	// 에러 페이지 반환을 의미하므로 즉시 실패 처리합니다.
	if isHTMLContentType(contentType) {
		return nil, apperrors.Newf(apperrors.ExecutionFailed, "JSON 응답을 기대했으나 HTML 페이지가 반환되었습니다. (URL: %s, Content-Type: %s)", rawURL, contentType)
	}

	// 실무에서는 많은 API가 올바른 JSON을 반환하면서도 Content-Type 헤더를 잘못 설정하므로,
	// 경고 로그만 남기고 파싱을 계속 진행합니다.
	if contentType != "" && !strings.Contains(strings.ToLower(contentType), "json") {
		logger.WithFields(applog.Fields{
			"status_code":  resp.StatusCode,
			"content_type": contentType,
		}).Warn("[JSON 파싱 진행]: 비표준 Content-Type 헤더가 감지되었지만 데이터 유효성 확인을 위해 파싱을 계속합니다")
	}

	// 메모리 보호를 위해 응답 본문을 maxResponseBodySize+1 까지만 읽어 초과 여부를 감지합니다.
	// JSON은 구조적 무결성이 필수이므로 잘린 데이터는 전혀 사용할 수 없습니다.
	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxResponseBodySize+1))
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.System, "JSON API(%s)의 응답 본문 읽기가 실패하였습니다.", rawURL)
	}
	if int64(len(body)) > s.maxResponseBodySize {
		logger.WithFields(applog.Fields{
			"body_size":   len(body),
			"limit_bytes": s.maxResponseBodySize,
		}).Error("[실패]: JSON 파싱 중단, 응답 본문 크기 초과(Truncated)")

		return nil, apperrors.Newf(apperrors.ExecutionFailed, "JSON API(%s)의 응답 크기가 허용치(%d바이트)를 초과하였습니다.", rawURL, s.maxResponseBodySize)
	}

	if err := s.decodeJSON(body, contentType, rawURL, v, logger); err != nil {
		return nil, err
	}

	return body, nil
}

// decodeJSON 메모리에 확보된 응답 본문을 디코딩하여 대상 구조체(v)에 저장합니다.
// 이 과정에서 문자열 인코딩 변환(Charset)과 JSON 문법 검사(Strict Mode)가 수행됩니다.
func (s *scraper) decodeJSON(body []byte, contentType, rawURL string, v any, logger *applog.Entry) error {
	// 문자 인코딩 감지 및 UTF-8 변환
	utf8Reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		logger.WithError(err).
			WithField("content_type", contentType).
			Warn("[경고]: 문자 인코딩 변환 실패, 인코딩 변환 없이 JSON 파싱을 계속합니다")

		utf8Reader = bytes.NewReader(body)
	}

	decoder := json.NewDecoder(utf8Reader)
	if err := decoder.Decode(v); err != nil {
		logger := logger.WithError(err).WithField("body_size", len(body))

		// json.SyntaxError는 에러가 발생한 정확한 바이트 위치(Offset)를 제공합니다.
		// 해당 위치 주변의 텍스트를 로그에 포함하여, 어떤 데이터 때문에 파싱이 실패했는지 즉시 식별할 수 있게 합니다.
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			const contextBytes = 50
			offset := int(syntaxErr.Offset)
			contextStart := max(offset-contextBytes, 0)
			contextEnd := min(offset+contextBytes, len(body))

			logger = logger.WithFields(applog.Fields{
				"syntax_error_offset":  offset,
				"syntax_error_context": string(body[contextStart:contextEnd]),
			})
		}

		logger.Error("[실패]: JSON 데이터 변환 실패, 유효하지 않은 형식")

		return apperrors.Wrapf(err, apperrors.ParsingFailed, "불러온 페이지(%s) 데이터의 JSON 변환이 실패하였습니다.", rawURL)
	}

	// Strict Mode: JSON 파싱이 완료된 후 스트림에 추가 데이터가 남아있는지 확인합니다.
	// 표준 json.Decoder는 첫 번째 완전한 JSON 객체를 파싱하면 성공으로 간주하지만,
	// 서버 버그로 JSON 뒤에 HTML 푸터나 디버그 메시지가 붙어있을 수 있습니다.
	// 이러한 응답은 데이터 무결성 문제를 나타내므로 명시적으로 에러 처리합니다.
	if token, err := decoder.Token(); err != io.EOF {
		offset := decoder.InputOffset()
		contextStart := max(int(offset)-30, 0)
		contextEnd := min(int(offset)+30, len(body))

		logger.WithFields(applog.Fields{
			"offset":           offset,
			"unexpected_token": token,
			"context_snippet":  string(body[contextStart:contextEnd]),
		}).Error("[실패]: JSON 데이터 뒤에 불필요한 잔여 데이터가 감지되었습니다")

		return apperrors.Newf(apperrors.ParsingFailed, "JSON 데이터 뒤에 불필요한 잔여 데이터가 감지되었습니다. (URL: %s)", rawURL)
	}

	return nil
}

// isHTMLContentType Content-Type 헤더가 HTML 응답을 나타내는지 확인합니다.
func isHTMLContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}
