package monitor

import (
	apperrors "github.com/darkkaiser/coffee-watcher/internal/pkg/errors"
)

// 알림 억제 정책 이름
const (
	// PolicyStrictEquality 결합된 handle 문자열의 정확 일치로만 변경을 판단합니다.
	PolicyStrictEquality = "strict-equality"

	// PolicySubset 현재 집합이 저장된 집합의 부분집합이면 알림을 억제합니다.
	// (빈 현재 집합도 부분집합으로 취급되어 억제됩니다)
	PolicySubset = "subset"

	// PolicyNonEmptySubset 정확 일치 또는 '비어있지 않은' 부분집합인 경우에만 억제합니다.
	// "모든 상품이 사라짐"은 항상 알림 대상이 됩니다.
	PolicyNonEmptySubset = "equality-then-nonempty-subset"
)

// Policy 알림 억제와 스냅샷 저장 여부를 결정하는 전략 인터페이스입니다.
//
// 배포 환경마다 서로 다른 변경 감지 동작이 필요하므로, 코드 분기가 아닌
// 설정으로 선택 가능한 전략으로 모델링합니다.
type Policy interface {
	// Name 정책의 설정 이름을 반환합니다.
	Name() string

	// ShouldSuppress 현재 스냅샷과 저장된 스냅샷을 비교하여 알림을 억제할지 결정합니다.
	// stored가 nil이면 이전 상태가 없음을 의미합니다.
	ShouldSuppress(current, stored *Snapshot) bool

	// ShouldPersist 이번 실행에서 평가된 스냅샷을 저장할지 결정합니다.
	// notified는 실제로 알림이 발송되었는지 여부입니다.
	ShouldPersist(current *Snapshot, notified bool) bool
}

// PolicyByName 설정 이름에 해당하는 정책 구현체를 반환합니다.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case PolicyStrictEquality:
		return strictEqualityPolicy{}, nil

	case PolicySubset, "":
		return subsetPolicy{}, nil

	case PolicyNonEmptySubset:
		return nonEmptySubsetPolicy{}, nil

	default:
		return nil, apperrors.Newf(apperrors.InvalidInput, "지원하지 않는 변경 감지 정책입니다. (%s)", name)
	}
}

// strictEqualityPolicy 결합된 handle 문자열이 저장된 값과 바이트 단위로 동일한 경우에만 억제합니다.
// 평가 후에는 알림 발송 여부와 관계없이 항상 스냅샷을 저장합니다.
type strictEqualityPolicy struct{}

func (strictEqualityPolicy) Name() string { return PolicyStrictEquality }

func (strictEqualityPolicy) ShouldSuppress(current, stored *Snapshot) bool {
	if stored == nil {
		return false
	}
	return current.Joined() == stored.Joined()
}

func (strictEqualityPolicy) ShouldPersist(_ *Snapshot, _ bool) bool {
	return true
}

// subsetPolicy 현재 handle 집합이 저장된 집합의 부분집합이면 억제합니다.
//
// "새로 등장한 상품이 있는가"만을 변경으로 취급하므로, 집합이 줄어드는 것만으로는
// 알림이 발생하지 않습니다. 빈 현재 집합은 모든 저장 집합의 부분집합으로 취급되어
// 억제됩니다. 이 동작은 기존 배포 환경과의 호환을 위해 그대로 유지하며,
// 교정된 동작이 필요하면 PolicyNonEmptySubset을 선택해야 합니다.
// 평가 후에는 알림 발송 여부와 관계없이 항상 스냅샷을 저장합니다.
type subsetPolicy struct{}

func (subsetPolicy) Name() string { return PolicySubset }

func (subsetPolicy) ShouldSuppress(current, stored *Snapshot) bool {
	if stored == nil {
		return false
	}
	return current.SubsetOf(stored)
}

func (subsetPolicy) ShouldPersist(_ *Snapshot, _ bool) bool {
	return true
}

// nonEmptySubsetPolicy 정확 일치이거나 '비어있지 않은' 부분집합인 경우에만 억제합니다.
//
// subsetPolicy와 달리 빈 현재 집합은 억제 대상에서 제외되므로,
// "모든 상품이 사라짐"도 알림으로 이어집니다.
// 스냅샷은 알림이 실제로 발송되었고 현재 집합이 비어있지 않은 경우에만 저장합니다.
type nonEmptySubsetPolicy struct{}

func (nonEmptySubsetPolicy) Name() string { return PolicyNonEmptySubset }

func (nonEmptySubsetPolicy) ShouldSuppress(current, stored *Snapshot) bool {
	if stored == nil {
		return false
	}

	if current.Equal(stored) {
		return true
	}

	return !current.Empty() && current.SubsetOf(stored)
}

func (nonEmptySubsetPolicy) ShouldPersist(current *Snapshot, notified bool) bool {
	return notified && !current.Empty()
}
