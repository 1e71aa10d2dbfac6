package monitor

import (
	"time"

	apperrors "github.com/darkkaiser/coffee-watcher/internal/pkg/errors"
)

// Listing 스토어프론트 상품 목록 엔드포인트(products.json)의 원본 응답입니다.
// 매 실행(tick)마다 새로 조회되며 그대로 저장되지는 않습니다.
type Listing struct {
	Products []Product `json:"products"`
}

// Product 상품 목록의 단일 상품입니다.
type Product struct {
	Title       string         `json:"title"`
	Handle      string         `json:"handle"`
	PublishedAt time.Time      `json:"published_at"`
	Variants    []Variant      `json:"variants"`
	Images      []ProductImage `json:"images"`
}

// Variant 상품의 판매 단위입니다.
// 변경 감지 로직은 모든 상품이 정확히 하나의 Variant를 가진다는 계약을 전제로 동작합니다.
type Variant struct {
	Title     string     `json:"title"`
	Available bool       `json:"available"`
	Price     string     `json:"price"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// ProductImage 상품 이미지 참조입니다.
type ProductImage struct {
	Src string `json:"src"`
}

// Validate 상품 목록이 데이터 계약을 준수하는지 검증합니다.
//
// 모든 상품은 정확히 하나의 Variant를 가져야 합니다. 이 계약이 깨지면
// 어떤 Variant를 기준으로 가용성을 판단해야 할지 정의되지 않으므로,
// 부분 복구를 시도하지 않고 문제가 된 상품을 명시하여 실행 전체를 실패 처리합니다.
func (l *Listing) Validate() error {
	for i, p := range l.Products {
		if p.Handle == "" {
			return apperrors.Newf(apperrors.ParsingFailed, "상품 목록의 %d번째 상품에 handle이 없습니다. (제목: %q)", i, p.Title)
		}

		if len(p.Variants) != 1 {
			return apperrors.Newf(apperrors.ParsingFailed,
				"상품(%s)의 Variant 개수가 1개가 아닙니다. (개수: %d) 데이터 계약 위반으로 실행을 중단합니다.", p.Handle, len(p.Variants))
		}
	}

	return nil
}

// UpdatedAt 상품 목록 전체에서 가장 최근의 변경 시각을 계산합니다.
//
// 가용 여부와 관계없이 모든 상품의 Variant가 대상이며, Variant에 변경 시각이 없는 경우
// 해당 상품의 게시 시각(published_at)으로 대체합니다.
// 상품 목록이 비어있으면 zero value를 반환합니다.
func (l *Listing) UpdatedAt() time.Time {
	var latest time.Time

	for _, p := range l.Products {
		for _, v := range p.Variants {
			ts := p.PublishedAt
			if v.UpdatedAt != nil {
				ts = *v.UpdatedAt
			}

			if ts.After(latest) {
				latest = ts
			}
		}
	}

	return latest
}
