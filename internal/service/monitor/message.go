package monitor

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/darkkaiser/coffee-watcher/internal/pkg/errors"
	"github.com/darkkaiser/coffee-watcher/internal/pkg/mark"
	"github.com/darkkaiser/coffee-watcher/pkg/strutil"
)

// coffeeTitleSuffix 메시지 출력 시 상품 제목에서 제거하는 고정 접미사입니다.
const coffeeTitleSuffix = " - Instant Coffee"

// currencySymbol 가격 앞에 붙는 통화 기호입니다.
const currencySymbol = "$"

// emptyListingMessage 구매 가능한 상품이 하나도 없을 때 발송되는 고정 문구입니다.
const emptyListingMessage = "There are no coffees available right now."

// MessageBuilder 가용 Coffee 목록으로부터 알림 메시지 본문을 생성합니다.
type MessageBuilder struct {
	collectionURL string
	location      *time.Location
}

// NewMessageBuilder 새로운 MessageBuilder를 생성합니다.
// timezone은 변경 시각 표기에 사용되는 IANA 타임존 이름입니다. (예: "America/Los_Angeles")
func NewMessageBuilder(collectionURL, timezone string) (*MessageBuilder, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.InvalidInput, "유효하지 않은 타임존입니다. (%s)", timezone)
	}

	return &MessageBuilder{
		collectionURL: collectionURL,
		location:      loc,
	}, nil
}

// Build 알림 메시지 본문을 생성합니다.
//
// 메시지 구성:
//   - 상품이 없는 경우: 고정 문구 한 줄
//   - 상품이 있는 경우: 헤더, 정렬된 순서의 상품 목록(접미사 제거, 통화 기호 포함), 컬렉션 페이지 링크
//   - updatedAt이 설정된 경우: 장문 날짜 형식의 변경 시각 줄을 마지막에 추가
//
// previewURL이 빈 문자열이 아니면 변경 시각 줄의 마침표를 미리보기 이미지로 연결되는
// 마크다운 링크로 대체합니다. 렌더링된 메시지에서 눈에 띄지 않도록 링크 텍스트를
// 구두점 한 글자로 유지하는 것은 의도된 동작이므로 변경하면 안 됩니다.
func (b *MessageBuilder) Build(coffees []Coffee, updatedAt time.Time, previewURL string) string {
	var sb strings.Builder

	if len(coffees) == 0 {
		sb.WriteString(emptyListingMessage)
	} else {
		sb.WriteString(fmt.Sprintf("%s **New coffees are up for grabs!**\n", mark.Coffee))

		for _, c := range coffees {
			title := strutil.TrimSuffixSpaces(c.Title, coffeeTitleSuffix)
			sb.WriteString(fmt.Sprintf("- %s %s (%s%s)\n", mark.Coffee, title, currencySymbol, c.Price))
		}

		sb.WriteString(fmt.Sprintf("\nCheck out the full lineup: %s", b.collectionURL))
	}

	if !updatedAt.IsZero() {
		ts := updatedAt.In(b.location)
		line := fmt.Sprintf("last changed on %s %s", ts.Format("January 2, 2006"), ts.Format("MST"))

		if previewURL != "" {
			line += fmt.Sprintf("[.](%s)", previewURL)
		} else {
			line += "."
		}

		sb.WriteString("\n")
		sb.WriteString(line)
	}

	return sb.String()
}
