package preview

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/darkkaiser/coffee-watcher/internal/pkg/errors"
	"github.com/darkkaiser/coffee-watcher/internal/service/fetcher"
)

// 이미지 크기 조정 방식
const (
	// FitInside 비율을 유지한 채 지정된 영역 안에 들어가도록 축소합니다.
	FitInside = "inside"

	// FitFill 비율을 무시하고 지정된 크기로 정확히 맞춥니다. (캔버스 생성용)
	FitFill = "fill"
)

// maxTransformResponseBytes 변환 서비스 응답 본문의 최대 허용 크기 (32MB)
const maxTransformResponseBytes = 32 * 1024 * 1024

// Transformer 픽셀 단위 이미지 처리 연산을 추상화한 인터페이스입니다.
// 실제 처리는 외부 변환 서비스가 수행합니다.
type Transformer interface {
	// Resize 이미지를 지정된 크기로 조정합니다. fit은 FitInside 또는 FitFill입니다.
	Resize(ctx context.Context, image []byte, width, height int, fit string) ([]byte, error)

	// Draw overlay 이미지를 image 위의 (left, top) 위치에 그립니다.
	Draw(ctx context.Context, image, overlay []byte, left, top int) ([]byte, error)

	// Encode 이미지를 지정된 출력 포맷으로 인코딩합니다. (예: "avif", "webp", "png")
	Encode(ctx context.Context, image []byte, format string) ([]byte, error)
}

// TransformClient 외부 이미지 변환 서비스의 HTTP 클라이언트입니다.
//
// 각 연산은 base64로 인코딩된 이미지와 파라미터를 JSON 본문으로 전송하고,
// 처리된 이미지의 원시 바이트를 응답으로 받습니다.
type TransformClient struct {
	baseURL string
	fetcher fetcher.Fetcher
}

// NewTransformClient 새로운 TransformClient를 생성합니다.
func NewTransformClient(baseURL string, f fetcher.Fetcher) *TransformClient {
	return &TransformClient{
		baseURL: baseURL,
		fetcher: f,
	}
}

// Resize Transformer 인터페이스 구현
func (c *TransformClient) Resize(ctx context.Context, image []byte, width, height int, fit string) ([]byte, error) {
	return c.post(ctx, "/resize", map[string]any{
		"image":  base64.StdEncoding.EncodeToString(image),
		"width":  width,
		"height": height,
		"fit":    fit,
	})
}

// Draw Transformer 인터페이스 구현
func (c *TransformClient) Draw(ctx context.Context, image, overlay []byte, left, top int) ([]byte, error) {
	return c.post(ctx, "/draw", map[string]any{
		"image":   base64.StdEncoding.EncodeToString(image),
		"overlay": base64.StdEncoding.EncodeToString(overlay),
		"left":    left,
		"top":     top,
	})
}

// Encode Transformer 인터페이스 구현
func (c *TransformClient) Encode(ctx context.Context, image []byte, format string) ([]byte, error) {
	return c.post(ctx, "/encode", map[string]any{
		"image":  base64.StdEncoding.EncodeToString(image),
		"format": format,
	})
}

// post 변환 연산을 호출하고 처리된 이미지 바이트를 반환합니다.
func (c *TransformClient) post(ctx context.Context, path string, params map[string]any) ([]byte, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "변환 요청 본문 직렬화가 실패하였습니다.")
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.Internal, "변환 요청(%s) 생성이 실패하였습니다.", url)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.fetcher.Do(req)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.Unavailable, "이미지 변환 서비스(%s) 호출이 실패하였습니다.", url)
	}
	defer resp.Body.Close()

	if err := fetcher.CheckResponseStatus(resp); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ExecutionFailed, "이미지 변환 서비스(%s)가 에러를 반환하였습니다.", url)
	}

	lr := io.LimitReader(resp.Body, maxTransformResponseBytes+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.System, "변환된 이미지 읽기가 실패하였습니다. (%s)", url)
	}
	if int64(len(data)) > maxTransformResponseBytes {
		return nil, apperrors.New(apperrors.ExecutionFailed, fmt.Sprintf("변환된 이미지 크기가 허용치(%d바이트)를 초과하였습니다.", maxTransformResponseBytes))
	}

	return data, nil
}
