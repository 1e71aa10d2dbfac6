package monitor

import (
	"encoding/json"
	"strings"

	applog "github.com/darkkaiser/coffee-watcher/pkg/log"
)

// handleSeparator 스냅샷의 handle들을 단일 문자열로 결합할 때 사용하는 구분자입니다.
const handleSeparator = ","

// Snapshot 마지막으로 알림을 보낸 가용 상품 집합의 식별자(Cache Representation)입니다.
//
// handle의 순서 있는 목록으로 표현되며, JSON 배열 형태의 평문 문자열로 직렬화되어
// 캐시 저장소에 보관됩니다.
type Snapshot struct {
	Handles []string
}

// NewSnapshot 정렬된 Coffee 목록으로부터 스냅샷을 생성합니다.
func NewSnapshot(coffees []Coffee) *Snapshot {
	handles := make([]string, 0, len(coffees))
	for _, c := range coffees {
		handles = append(handles, c.Handle)
	}
	return &Snapshot{Handles: handles}
}

// Empty 스냅샷에 handle이 하나도 없는지 여부를 반환합니다.
func (s *Snapshot) Empty() bool {
	return len(s.Handles) == 0
}

// Joined 모든 handle을 구분자로 결합한 단일 문자열을 반환합니다. (정확 일치 비교용)
func (s *Snapshot) Joined() string {
	return strings.Join(s.Handles, handleSeparator)
}

// Equal 두 스냅샷의 handle 목록이 순서까지 동일한지 비교합니다.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if other == nil {
		return false
	}
	return s.Joined() == other.Joined()
}

// SubsetOf 이 스냅샷의 모든 handle이 other에 포함되는지 여부를 반환합니다.
// 빈 스냅샷은 모든 스냅샷의 부분집합으로 취급됩니다. (공집합의 수학적 정의 그대로)
func (s *Snapshot) SubsetOf(other *Snapshot) bool {
	if other == nil {
		return false
	}

	stored := make(map[string]struct{}, len(other.Handles))
	for _, h := range other.Handles {
		stored[h] = struct{}{}
	}

	for _, h := range s.Handles {
		if _, ok := stored[h]; !ok {
			return false
		}
	}

	return true
}

// Encode 스냅샷을 캐시 저장소에 보관할 평문 문자열(JSON 배열)로 직렬화합니다.
func (s *Snapshot) Encode() string {
	handles := s.Handles
	if handles == nil {
		handles = []string{}
	}

	// 문자열 슬라이스의 JSON 직렬화는 실패할 수 없습니다.
	data, _ := json.Marshal(handles)
	return string(data)
}

// DecodeSnapshot 캐시 저장소에서 읽은 평문 문자열을 스냅샷으로 복원합니다.
//
// 저장된 값이 손상되어 해석할 수 없는 경우, 실행을 중단하지 않고
// "이전 상태 없음(nil)"으로 처리합니다. 이 경우 다음 알림 평가는 첫 실행과 동일하게 동작합니다.
func DecodeSnapshot(raw string) *Snapshot {
	var handles []string
	if err := json.Unmarshal([]byte(raw), &handles); err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"raw":   raw,
			"error": err,
		}).Warn("저장된 스냅샷 해석 실패: 이전 상태 없음으로 처리합니다")

		return nil
	}

	return &Snapshot{Handles: handles}
}
