package preview

import (
	"context"
	_ "embed"

	apperrors "github.com/darkkaiser/coffee-watcher/internal/pkg/errors"
	"github.com/darkkaiser/coffee-watcher/internal/service/fetcher"
	applog "github.com/darkkaiser/coffee-watcher/pkg/log"
)

// component 미리보기 로깅용 컴포넌트 이름
const component = "preview"

// maxSourceImageBytes 원본 상품 이미지 한 장의 최대 허용 크기 (16MB)
const maxSourceImageBytes = 16 * 1024 * 1024

// canvasSeed 캔버스 생성의 기준이 되는 1x1 흰색 PNG입니다.
// 변환 서비스의 Resize(FitFill)로 목표 크기까지 늘려서 흰색 캔버스를 만듭니다.
//
//go:embed canvas.png
var canvasSeed []byte

// Renderer 여러 상품 이미지를 가로 띠 형태의 단일 이미지로 합성합니다.
//
// 캔버스 크기는 이미지 개수 N에 대해 다음과 같이 계산됩니다.
//
//	가로: tileSize*N + tileSpacing*(N+1)
//	세로: tileSize + tileSpacing*2
//
// 각 이미지는 비율을 유지한 채 타일 크기에 맞춰 축소된 후,
// 왼쪽에서부터 순서대로 일정한 간격을 두고 배치됩니다.
type Renderer struct {
	transform Transformer
	fetcher   fetcher.Fetcher

	tileSize    int
	tileSpacing int
	format      string
}

// NewRenderer 새로운 Renderer를 생성합니다.
func NewRenderer(transform Transformer, f fetcher.Fetcher, tileSize, tileSpacing int, format string) (*Renderer, error) {
	if tileSize <= 0 || tileSpacing < 0 {
		return nil, apperrors.Newf(apperrors.InvalidInput, "유효하지 않은 타일 크기입니다. (크기: %d, 간격: %d)", tileSize, tileSpacing)
	}
	if format == "" {
		return nil, apperrors.New(apperrors.InvalidInput, "출력 이미지 포맷이 입력되지 않았습니다.")
	}

	return &Renderer{
		transform: transform,
		fetcher:   f,

		tileSize:    tileSize,
		tileSpacing: tileSpacing,
		format:      format,
	}, nil
}

// ContentType 렌더링 결과물의 Content-Type 헤더 값을 반환합니다.
func (r *Renderer) ContentType() string {
	return "image/" + r.format
}

// Render 이미지 URL 목록을 내려받아 하나의 합성 이미지로 렌더링합니다.
// 어느 한 장의 다운로드 또는 변환이라도 실패하면 전체 렌더링이 실패합니다.
func (r *Renderer) Render(ctx context.Context, images []string) ([]byte, error) {
	if len(images) == 0 {
		return nil, apperrors.New(apperrors.InvalidInput, "합성할 이미지가 없습니다.")
	}

	n := len(images)
	canvasWidth := r.tileSize*n + r.tileSpacing*(n+1)
	canvasHeight := r.tileSize + r.tileSpacing*2

	applog.WithComponentAndFields(component, applog.Fields{
		"images": n,
		"width":  canvasWidth,
		"height": canvasHeight,
	}).Debug("미리보기 이미지 합성 시작")

	canvas, err := r.transform.Resize(ctx, canvasSeed, canvasWidth, canvasHeight, FitFill)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ExecutionFailed, "캔버스 생성이 실패하였습니다.")
	}

	for i, imageURL := range images {
		source, err := fetcher.FetchBytes(ctx, r.fetcher, imageURL, maxSourceImageBytes)
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.ExecutionFailed, "원본 이미지(%s) 다운로드가 실패하였습니다.", imageURL)
		}

		tile, err := r.transform.Resize(ctx, source, r.tileSize, r.tileSize, FitInside)
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.ExecutionFailed, "원본 이미지(%s) 크기 조정이 실패하였습니다.", imageURL)
		}

		left := r.tileSpacing + i*(r.tileSize+r.tileSpacing)
		canvas, err = r.transform.Draw(ctx, canvas, tile, left, r.tileSpacing)
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.ExecutionFailed, "이미지 배치가 실패하였습니다. (순번: %d)", i)
		}
	}

	rendered, err := r.transform.Encode(ctx, canvas, r.format)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ExecutionFailed, "합성 이미지의 %s 인코딩이 실패하였습니다.", r.format)
	}

	return rendered, nil
}
