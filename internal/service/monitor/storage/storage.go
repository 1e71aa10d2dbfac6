// Package storage 모니터링 스냅샷을 보관하는 캐시 저장소를 제공합니다.
//
// 저장되는 값은 단일 평문 문자열이며, 읽기 시 저장한 그대로(byte-for-byte) 반환되어야 합니다.
// 값의 해석(스냅샷 디코딩)은 저장소의 책임이 아닙니다.
package storage

import (
	apperrors "github.com/darkkaiser/coffee-watcher/internal/pkg/errors"
)

// component 캐시 저장소 로깅용 컴포넌트 이름
const component = "monitor.storage"

// CacheStore 키-값 형태의 캐시 저장소 인터페이스입니다.
type CacheStore interface {
	// Load 지정된 키의 값을 읽어옵니다.
	// 키가 존재하지 않으면 (값 "", false, nil)을 반환합니다.
	Load(key string) (value string, ok bool, err error)

	// Save 지정된 키에 값을 저장합니다. 기존 값은 덮어씁니다.
	Save(key string, value string) error
}

// 저장소 백엔드 식별자
const (
	BackendFile = "file"
	BackendBolt = "bolt"
)

// NewCacheStore 설정된 백엔드에 해당하는 캐시 저장소를 생성합니다.
//
//   - file: 키별 JSON 파일에 원자적 쓰기로 저장 (기본값)
//   - bolt: 단일 bbolt 데이터베이스 파일에 저장
func NewCacheStore(backend, dir string) (CacheStore, error) {
	switch backend {
	case BackendFile, "":
		return NewFileCacheStore(dir)

	case BackendBolt:
		return NewBoltCacheStore(dir)

	default:
		return nil, apperrors.Newf(apperrors.InvalidInput, "지원하지 않는 캐시 저장소 백엔드입니다. (%s)", backend)
	}
}
