package storage

import (
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/darkkaiser/coffee-watcher/internal/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// boltDatabaseName 캐시 데이터베이스 파일 이름입니다.
const boltDatabaseName = "coffee-watcher.db"

// bucketCache 캐시 값이 저장되는 버킷 이름입니다.
var bucketCache = []byte("cache")

// boltCacheStore bbolt 데이터베이스를 기반으로 캐시 값을 저장하는 저장소 구현체입니다.
//
// 파일 백엔드와 달리 모든 키가 단일 데이터베이스 파일에 저장되며,
// 트랜잭션을 통해 동시성과 쓰기 무결성이 보장됩니다.
type boltCacheStore struct {
	db *bolt.DB
}

// 컴파일 타임에 인터페이스 구현 여부를 검증합니다.
var _ CacheStore = (*boltCacheStore)(nil)

// NewBoltCacheStore bbolt 기반의 캐시 저장소를 생성합니다.
// dir에 빈 문자열("")을 전달하면 기본 디렉토리("data")를 사용합니다.
func NewBoltCacheStore(dir string) (CacheStore, error) {
	if dir == "" {
		dir = defaultDataDirectory
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.System, "캐시 저장소 디렉토리(%s) 생성에 실패하였습니다.", dir)
	}

	dbPath := filepath.Join(dir, boltDatabaseName)

	// 다른 프로세스가 데이터베이스 파일을 점유하고 있는 경우 무한 대기를 방지합니다.
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.System, "캐시 데이터베이스(%s) 열기에 실패하였습니다.", dbPath)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCache)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, apperrors.Wrap(err, apperrors.System, "캐시 버킷 생성에 실패하였습니다.")
	}

	return &boltCacheStore{db: db}, nil
}

// Load 저장된 캐시 값을 읽어옵니다.
// 키가 존재하지 않으면 (값 "", false, nil)을 반환합니다.
func (s *boltCacheStore) Load(key string) (string, bool, error) {
	var value string
	var found bool

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCache).Get([]byte(key))
		if data == nil {
			return nil
		}

		// 트랜잭션 종료 후에는 data 슬라이스가 무효화되므로 반드시 복사합니다.
		value = string(data)
		found = true
		return nil
	})
	if err != nil {
		return "", false, apperrors.Wrap(err, apperrors.System, "캐시 데이터베이스 읽기가 실패하였습니다.")
	}

	return value, found, nil
}

// Save 캐시 값을 저장합니다. 기존 값은 덮어씁니다.
func (s *boltCacheStore) Save(key string, value string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCache).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.System, "캐시 데이터베이스 쓰기가 실패하였습니다.")
	}

	return nil
}

// Close 데이터베이스 리소스를 해제합니다.
func (s *boltCacheStore) Close() error {
	return s.db.Close()
}
