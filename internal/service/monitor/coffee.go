package monitor

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Coffee 알림 메시지 생성에 사용되는 파생 항목입니다.
// 가용(available = true) 상태인 Variant를 가진 상품만이 Coffee로 파생됩니다.
type Coffee struct {
	Title    string // 상품 제목 (원본 그대로, 접미사 제거는 메시지 생성 시 수행)
	Handle   string // 상품 고유 슬러그
	Price    string // 가격 (십진수 문자열 그대로 유지)
	ImageURL string // 첫 번째 상품 이미지 URL (없으면 빈 문자열)
}

// titleCollator 제목 정렬에 사용하는 로케일 기반 비교기입니다.
// 단순 바이트 비교와 달리 대소문자를 무시하고 악센트 문자 등을 자연스럽게 정렬합니다.
var titleCollator = collate.New(language.English, collate.IgnoreCase)

// DeriveCoffees 상품 목록에서 현재 구매 가능한 Coffee 목록을 파생합니다.
//
// 가용 Variant만 남긴 후 제목 기준 오름차순(로케일 기반, 대소문자 무시)으로 정렬합니다.
// 호출 전에 Listing.Validate()로 데이터 계약(상품당 Variant 1개)이 검증되어 있어야 합니다.
func DeriveCoffees(listing *Listing) []Coffee {
	coffees := make([]Coffee, 0, len(listing.Products))

	for _, p := range listing.Products {
		v := p.Variants[0]
		if !v.Available {
			continue
		}

		var imageURL string
		if len(p.Images) > 0 {
			imageURL = p.Images[0].Src
		}

		coffees = append(coffees, Coffee{
			Title:    p.Title,
			Handle:   p.Handle,
			Price:    v.Price,
			ImageURL: imageURL,
		})
	}

	sort.SliceStable(coffees, func(i, j int) bool {
		return titleCollator.CompareString(coffees[i].Title, coffees[j].Title) < 0
	})

	return coffees
}

// ImageURLs 정렬된 Coffee 목록에서 이미지 URL만 순서대로 추출합니다.
// 이미지가 없는 Coffee는 제외됩니다. (미리보기 이미지 합성용)
func ImageURLs(coffees []Coffee) []string {
	urls := make([]string, 0, len(coffees))
	for _, c := range coffees {
		if c.ImageURL != "" {
			urls = append(urls, c.ImageURL)
		}
	}
	return urls
}
