package storage

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/darkkaiser/coffee-watcher/internal/pkg/errors"
	"github.com/darkkaiser/coffee-watcher/pkg/concurrency"
	applog "github.com/darkkaiser/coffee-watcher/pkg/log"
	"github.com/iancoleman/strcase"
)

// defaultDataDirectory 캐시 값을 저장할 기본 디렉토리 이름입니다.
const defaultDataDirectory = "data"

// tempFilePattern 임시 파일 저장 시 사용되는 임시 파일의 이름 패턴입니다.
const tempFilePattern = "cache-value-*.tmp"

// fileCacheStore 파일 시스템을 기반으로 캐시 값을 저장하는 저장소 구현체입니다.
//
// [파일 구조]
//   - cache-{키이름}-{hash}.json: 캐시 값이 평문 그대로 저장됩니다.
//   - cache-value-*.tmp: 파일 저장 중 생성되는 임시 파일입니다.
type fileCacheStore struct {
	baseDir string

	// locks 동일한 파일에 대한 동시 쓰기를 방지하기 위한 파일별 뮤텍스입니다.
	locks *concurrency.KeyedMutex
}

// 컴파일 타임에 인터페이스 구현 여부를 검증합니다.
var _ CacheStore = (*fileCacheStore)(nil)

// NewFileCacheStore 파일 시스템 기반의 캐시 저장소를 생성합니다.
//
// 초기화 과정에서 저장 디렉토리를 생성하고, 이전 실행에서 남은 임시 파일을 정리합니다.
// dir에 빈 문자열("")을 전달하면 기본 디렉토리("data")를 사용합니다.
func NewFileCacheStore(dir string) (CacheStore, error) {
	if dir == "" {
		dir = defaultDataDirectory
	}

	// 상대 경로를 절대 경로로 변환하여 경로 일관성을 보장합니다.
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "캐시 저장소 디렉토리의 절대 경로 변환에 실패하였습니다.")
	}

	// 저장소 초기화 시점에 디렉토리 생성 및 접근 권한을 미리 확인합니다.
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.System, "캐시 저장소 디렉토리(%s) 생성에 실패하였습니다.", absDir)
	}

	s := &fileCacheStore{
		baseDir: absDir,

		locks: concurrency.NewKeyedMutex(),
	}

	// 백그라운드에서 이전 실행 시 남은 오래된 임시 파일을 정리합니다.
	// 서버 시작 속도에 영향을 주지 않도록 비동기로 수행합니다.
	go func() {
		defer func() {
			if r := recover(); r != nil {
				applog.WithComponentAndFields(component, applog.Fields{
					"baseDir": s.baseDir,
					"panic":   r,
				}).Error("임시 파일 정리 중단: 백그라운드 작업 패닉 발생")
			}
		}()

		s.cleanupStaleTempFiles()
	}()

	return s, nil
}

// cleanupStaleTempFiles 이전 실행에서 남겨진 오래된 임시 파일을 정리합니다.
// 비정상 종료(크래시, 강제 종료 등)로 인해 남겨진 임시 파일들이 대상입니다.
func (s *fileCacheStore) cleanupStaleTempFiles() {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"dir":   s.baseDir,
			"error": err,
		}).Warn("임시 파일 정리 중단: 디렉토리 조회 실패")

		return
	}

	// 최근 1시간 이내에 수정된 파일은 다른 프로세스가 사용 중일 수 있으므로 삭제하지 않습니다.
	threshold := time.Now().Add(-1 * time.Hour)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		matched, _ := filepath.Match(tempFilePattern, name)
		if !matched {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().After(threshold) {
			continue
		}

		fullPath := filepath.Join(s.baseDir, name)
		if err := os.Remove(fullPath); err != nil {
			applog.WithComponentAndFields(component, applog.Fields{
				"file":  fullPath,
				"error": err,
			}).Warn("임시 파일 삭제 실패: 파일 제거 오류")
		} else {
			applog.WithComponentAndFields(component, applog.Fields{
				"file": fullPath,
			}).Info("임시 파일 삭제 완료: 이전 실행 잔존 파일 정리")
		}
	}
}

// Load 저장된 캐시 값을 파일에서 읽어옵니다.
//
// 쓰기 작업과의 경합을 방지하기 위해 읽기에도 파일별 Lock을 적용합니다.
// 파일이 존재하지 않는 경우(첫 실행 등)는 에러가 아닌 (값 없음)으로 처리합니다.
func (s *fileCacheStore) Load(key string) (string, bool, error) {
	filename, err := s.resolveSafePath(key)
	if err != nil {
		return "", false, err
	}

	var data []byte
	var found bool

	// Windows 등 대소문자를 구분하지 않는 파일 시스템을 위해 Lock 키는 소문자로 정규화합니다.
	err = s.locks.WithLock(strings.ToLower(filename), func() error {
		var readErr error
		data, readErr = os.ReadFile(filename)
		if readErr != nil {
			if os.IsNotExist(readErr) {
				return nil
			}
			return apperrors.Wrap(readErr, apperrors.System, "캐시 파일 읽기가 실패하였습니다.")
		}

		found = true
		return nil
	})
	if err != nil {
		return "", false, err
	}

	if !found {
		return "", false, nil
	}

	return string(data), true, nil
}

// Save 캐시 값을 파일에 저장합니다.
//
// [저장 전략: 원자적 쓰기]
// 파일 저장 중 시스템 장애(전원 차단, 프로세스 종료 등)가 발생해도 데이터 무결성을
// 보장하기 위해 "임시 파일 쓰기 → 동기화 → 원자적 이름 변경" 방식을 사용합니다.
func (s *fileCacheStore) Save(key string, value string) error {
	filename, err := s.resolveSafePath(key)
	if err != nil {
		return err
	}

	// Windows 등 대소문자를 구분하지 않는 파일 시스템을 위해 Lock 키는 소문자로 정규화합니다.
	return s.locks.WithLock(strings.ToLower(filename), func() error {
		return s.writeAtomic(filename, []byte(value))
	})
}

// resolveSafePath 캐시 키를 사용하여 안전하게 검증된 파일 경로를 생성합니다.
//
// 생성된 경로가 허용된 기본 디렉토리를 벗어나지 않는지 엄격하게 검증하여
// Path Traversal 공격을 방어합니다.
func (s *fileCacheStore) resolveSafePath(key string) (string, error) {
	filename := generateFilename(key)

	fullPath := filepath.Join(s.baseDir, filename)
	cleanPath := filepath.Clean(fullPath)

	// filepath.Rel을 사용하여 BaseDir 기준의 상대 경로를 계산하여 검증합니다.
	// 단순 접두사(Prefix) 비교 취약점(Sibling Directory Attack)을 근본적으로 해결합니다.
	rel, err := filepath.Rel(s.baseDir, cleanPath)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.System, "캐시 파일 경로 계산에 실패하였습니다.")
	}

	// 상대 경로가 ".."으로 시작하면 상위 디렉토리로 이탈한 것입니다.
	if strings.HasPrefix(rel, "..") {
		applog.WithComponentAndFields(component, applog.Fields{
			"key":      key,
			"filename": filename,
			"base_dir": s.baseDir,
			"path":     cleanPath,
		}).Error("파일 경로 생성 차단: 경로 이탈 시도 감지")

		return "", apperrors.New(apperrors.InvalidInput, "허용되지 않은 파일 경로입니다.")
	}

	return cleanPath, nil
}

// writeAtomic 데이터를 파일에 원자적으로 저장합니다.
//
// 1. 같은 디렉토리 내에 임시 파일을 생성 (크로스 파일시스템 rename 방지)
// 2. 데이터를 임시 파일에 완전히 기록 후 fsync로 물리적 저장 보장
// 3. os.Rename으로 원자적 덮어쓰기 (POSIX 및 현대 Windows에서 보장)
// 4. 부모 디렉토리 fsync로 파일명 변경 사항을 디스크에 기록
func (s *fileCacheStore) writeAtomic(filename string, data []byte) error {
	dir := filepath.Dir(filename)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.Wrap(err, apperrors.System, "캐시 디렉토리 생성에 실패하였습니다.")
	}

	tmpFile, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return apperrors.Wrap(err, apperrors.System, "임시 파일 생성에 실패하였습니다.")
	}
	tmpPath := tmpFile.Name()

	// Windows에서는 파일이 열려있는 상태에서는 삭제가 불가능하므로
	// 반드시 '파일 닫기(Close)'가 '파일 삭제(Remove)'보다 먼저 실행되어야 합니다.
	defer os.Remove(tmpPath)
	defer tmpFile.Close()

	if _, err := tmpFile.Write(data); err != nil {
		return apperrors.Wrap(err, apperrors.System, "임시 파일 쓰기에 실패하였습니다.")
	}

	// 운영체제 버퍼 캐시에 있는 데이터를 물리적 디스크에 강제로 기록합니다.
	// 이 단계를 생략하면 전원 차단 시 데이터가 유실될 수 있습니다.
	if err := tmpFile.Sync(); err != nil {
		return apperrors.Wrap(err, apperrors.System, "임시 파일 동기화(fsync)에 실패하였습니다.")
	}

	// Windows에서는 파일이 열려 있으면 rename이 실패하므로 반드시 닫아야 합니다.
	if err := tmpFile.Close(); err != nil {
		return apperrors.Wrap(err, apperrors.System, "임시 파일 닫기에 실패하였습니다.")
	}

	if err := s.renameWithRetry(tmpPath, filename); err != nil {
		return apperrors.Wrap(err, apperrors.System, "캐시 파일 이름 변경에 실패하였습니다.")
	}

	// 파일명 변경 사항을 디스크에 확실히 기록하기 위해 부모 디렉토리를 fsync합니다.
	// 실패해도 치명적이지 않으므로 에러를 무시합니다.
	if dirFile, err := os.Open(dir); err == nil {
		_ = dirFile.Sync()
		dirFile.Close()
	}

	return nil
}

// renameWithRetry 파일 이름 변경을 재시도 로직과 함께 수행합니다.
//
// Windows 개발 환경에서는 바이러스 백신이나 파일 인덱서가 파일을 일시적으로 잠글 수 있으므로,
// 짧은 대기 후 재시도하여 일시적인 잠금 문제를 우회합니다.
func (s *fileCacheStore) renameWithRetry(oldPath, newPath string) error {
	const maxRetries = 5
	const retryDelay = 10 * time.Millisecond

	var lastErr error
	for range maxRetries {
		err := os.Rename(oldPath, newPath)
		if err == nil {
			return nil
		}

		lastErr = err
		time.Sleep(retryDelay)
	}

	return lastErr
}

// filenameReplacer 파일명 생성 시 파일 시스템에서 문제를 일으킬 수 있는 특수문자를 안전한 문자로 치환합니다.
//
//   - 경로 이탈 방지: ".." (상위 디렉토리), "/" 및 "\" (경로 구분자)를 하이픈으로 치환
//   - Windows 예약 문자: < > : " | ? * 등 Windows에서 금지된 문자를 하이픈으로 치환
var filenameReplacer = strings.NewReplacer(
	"..", "--",
	"/", "-",
	"\\", "-",
	"|", "-",
	"<", "-",
	">", "-",
	":", "-",
	"\"", "-",
	"?", "-",
	"*", "-",
)

// generateFilename 캐시 키를 시스템에서 안전하게 사용할 수 있는 고유한 파일명으로 변환합니다.
//
// 사람이 읽기 쉬우면서도 시스템적으로 완전히 고유한 파일명을 만들기 위해
// Kebab-Case로 정제한 이름과 원본 키의 64비트 해시값을 결합합니다.
// 해시는 서로 다른 키가 정제 후 같은 이름이 되는 충돌과, 대소문자를 구분하지 않는
// 파일 시스템에서의 충돌을 방지합니다.
//
// [생성 패턴]
// "cache-{정제된키이름}-{16자리해시}.json"
func generateFilename(key string) string {
	name := sanitizeName(key)
	name = truncateByBytes(name, 50)

	hasher := fnv.New64a()
	_, _ = fmt.Fprintf(hasher, "%d:%s", len(key), key)
	hashSum := hasher.Sum64()

	return fmt.Sprintf("cache-%s-%016x.json", name, hashSum)
}

// sanitizeName 파일명으로 안전하게 사용할 수 있도록 문자열을 정제합니다.
func sanitizeName(s string) string {
	kebab := strcase.ToKebab(s)

	// Windows 등 일부 파일 시스템은 제어 문자를 파일명에 허용하지 않습니다.
	kebab = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7F {
			return '-'
		}
		return r
	}, kebab)

	return filenameReplacer.Replace(kebab)
}

// truncateByBytes 문자열을 UTF-8 바이트 길이 기준으로 안전하게 자릅니다.
//
// UTF-8에서 한글, 이모지 등은 2~4바이트를 차지하므로, 단순히 바이트 인덱스로 자르면
// 문자가 중간에 잘려 깨진 문자가 생성될 수 있습니다. Rune 단위로 순회하며
// limit 바이트를 초과하지 않는 지점까지만 자릅니다.
func truncateByBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	var totalBytes int
	for i := 0; i < len(s); {
		_, size := utf8.DecodeRuneInString(s[i:])

		if totalBytes+size > limit {
			return s[:totalBytes]
		}

		totalBytes += size
		i += size
	}

	return s[:totalBytes]
}
