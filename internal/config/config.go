// Package config 설정 파일, 환경 변수, 기본값을 계층적으로 병합하여
// 애플리케이션 설정을 로드하고 검증합니다.
package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	apperrors "github.com/darkkaiser/coffee-watcher/internal/pkg/errors"
	"github.com/darkkaiser/coffee-watcher/internal/service/monitor"
	"github.com/darkkaiser/coffee-watcher/pkg/cronx"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// AppName 애플리케이션의 전역 고유 식별자입니다.
	AppName string = "coffee-watcher"

	// DefaultFilename 애플리케이션 초기화 시 참조하는 기본 설정 파일명입니다.
	// 실행 인자를 통해 명시적인 경로가 제공되지 않을 경우, 시스템은 이 파일을 탐색하여 구성을 로드합니다.
	DefaultFilename = AppName + ".json"

	// ------------------------------------------------------------------------------------------------
	// HTTP 재시도 정책 기본값
	// ------------------------------------------------------------------------------------------------

	// DefaultMaxRetries HTTP 요청 실패 시 최대 재시도 횟수 기본값
	DefaultMaxRetries = 3

	// DefaultRetryDelay 재시도 사이의 대기 시간 기본값
	DefaultRetryDelay = "2s"

	// ------------------------------------------------------------------------------------------------
	// 감시 작업 기본값
	// ------------------------------------------------------------------------------------------------

	// DefaultUserAgent 상품 목록 조회 시 사용하는 User-Agent 헤더 기본값
	DefaultUserAgent = "Mozilla/5.0"

	// DefaultTimezone 변경 시각 표기용 타임존 기본값
	DefaultTimezone = "America/Los_Angeles"

	// DefaultCacheBackend 스냅샷 캐시 저장소 종류 기본값
	DefaultCacheBackend = "file"

	// DefaultCacheDir 파일 캐시 저장소의 데이터 디렉토리 기본값
	DefaultCacheDir = "data"

	// DefaultCacheKey 스냅샷을 보관하는 캐시 키 기본값
	DefaultCacheKey = "coffees"

	// ------------------------------------------------------------------------------------------------
	// 미리보기 기본값
	// ------------------------------------------------------------------------------------------------

	// DefaultPreviewTileSize 미리보기 합성 이미지의 타일 한 변 크기 기본값 (픽셀)
	DefaultPreviewTileSize = 256

	// DefaultPreviewTileSpacing 미리보기 합성 이미지의 타일 간격 기본값 (픽셀)
	DefaultPreviewTileSpacing = 16

	// DefaultPreviewOutputFormat 미리보기 합성 이미지의 출력 포맷 기본값
	DefaultPreviewOutputFormat = "avif"
)

// 캐시 저장소 종류
const (
	CacheBackendFile = "file"
	CacheBackendBolt = "bolt"
)

// AppConfig 애플리케이션의 모든 설정을 관장하는 최상위 루트 구조체
type AppConfig struct {
	Debug     bool            `json:"debug"`
	HTTPRetry HTTPRetryConfig `json:"http_retry"`
	Notifiers NotifiersConfig `json:"notifiers"`
	Watcher   WatcherConfig   `json:"watcher"`
	Preview   PreviewConfig   `json:"preview"`
}

// validate 설정 파일 로드 직후, 각 설정 항목의 정합성과 필수 값의 유효성을 검증합니다.
func (c *AppConfig) validate(v *validator.Validate) error {
	// HTTP 재시도 정책 유효성 검사
	if err := c.HTTPRetry.validate(v); err != nil {
		return err
	}

	// Notifiers 유효성 검사
	if _, err := c.Notifiers.validate(v); err != nil {
		return err
	}

	// Watcher 유효성 검사
	if err := c.Watcher.validate(v); err != nil {
		return err
	}

	// Preview 유효성 검사
	if err := c.Preview.validate(v); err != nil {
		return err
	}

	return nil
}

// HTTPRetryConfig HTTP 요청 실패 시 재시도 횟수와 대기 시간을 정의하는 설정 구조체
type HTTPRetryConfig struct {
	MaxRetries int    `json:"max_retries" validate:"min=0"`
	RetryDelay string `json:"retry_delay"`
}

func (c *HTTPRetryConfig) validate(v *validator.Validate) error {
	if err := checkStruct(v, c, "HTTP 재시도 정책"); err != nil {
		return err
	}

	delay, err := time.ParseDuration(c.RetryDelay)
	if err != nil {
		return apperrors.Wrap(err, apperrors.InvalidInput, fmt.Sprintf("HTTP 재시도 대기 시간(retry_delay) 설정이 올바르지 않습니다: '%s' (예: 1s, 500ms)", c.RetryDelay))
	}
	if delay <= 0 {
		return apperrors.New(apperrors.InvalidInput, fmt.Sprintf("HTTP 재시도 대기 시간(retry_delay)은 0보다 커야 합니다: '%s'", c.RetryDelay))
	}

	return nil
}

// RetryDelayDuration 재시도 대기 시간을 time.Duration으로 반환합니다.
// validate()를 통과한 설정에서만 호출해야 합니다.
func (c *HTTPRetryConfig) RetryDelayDuration() time.Duration {
	delay, _ := time.ParseDuration(c.RetryDelay)
	return delay
}

// NotifiersConfig 알림 채널(Discord Webhook, Telegram)을 정의하는 설정 구조체
type NotifiersConfig struct {
	DefaultNotifierID     string           `json:"default_notifier_id"`
	DiagnosticsNotifierID string           `json:"diagnostics_notifier_id"`
	Discords              []DiscordConfig  `json:"discords" validate:"unique=ID"`
	Telegrams             []TelegramConfig `json:"telegrams" validate:"unique=ID"`
}

func (c *NotifiersConfig) validate(v *validator.Validate) ([]string, error) {
	// Discord/Telegram 각각의 중복 ID 검사
	if err := checkUniqueField(v, c.Discords, "ID", "Discord Notifier"); err != nil {
		return nil, err
	}
	if err := checkUniqueField(v, c.Telegrams, "ID", "Telegram Notifier"); err != nil {
		return nil, err
	}

	var notifierIDs []string

	for _, discord := range c.Discords {
		if err := checkStruct(v, discord, fmt.Sprintf("Discord Notifier['%s']", discord.ID)); err != nil {
			return nil, err
		}
		notifierIDs = append(notifierIDs, discord.ID)
	}

	for _, telegram := range c.Telegrams {
		if err := checkStruct(v, telegram, fmt.Sprintf("Telegram Notifier['%s']", telegram.ID)); err != nil {
			return nil, err
		}
		notifierIDs = append(notifierIDs, telegram.ID)
	}

	// 채널 종류를 아우르는 전체 ID 유일성 검사
	seen := make(map[string]struct{}, len(notifierIDs))
	for _, id := range notifierIDs {
		if _, exists := seen[id]; exists {
			return nil, apperrors.New(apperrors.InvalidInput, fmt.Sprintf("서로 다른 알림 채널 종류 간에 중복된 NotifierID('%s')가 존재합니다", id))
		}
		seen[id] = struct{}{}
	}

	// 기본/진단 Notifier ID 검사
	if !slices.Contains(notifierIDs, c.DefaultNotifierID) {
		return nil, apperrors.New(apperrors.NotFound, fmt.Sprintf("기본 NotifierID('%s')가 정의된 Notifier 목록에 존재하지 않습니다", c.DefaultNotifierID))
	}
	if !slices.Contains(notifierIDs, c.DiagnosticsNotifierID) {
		return nil, apperrors.New(apperrors.NotFound, fmt.Sprintf("진단용 NotifierID('%s')가 정의된 Notifier 목록에 존재하지 않습니다", c.DiagnosticsNotifierID))
	}

	return notifierIDs, nil
}

// DiscordConfig Discord 호환 Webhook URL 정보를 담는 설정 구조체
type DiscordConfig struct {
	ID         string `json:"id" validate:"required"`
	WebhookURL string `json:"webhook_url" validate:"required,url"`
}

// TelegramConfig 텔레그램 봇 토큰 및 채팅 ID 정보를 담는 설정 구조체
type TelegramConfig struct {
	ID       string `json:"id" validate:"required"`
	BotToken string `json:"bot_token" validate:"required,telegram_bot_token"`
	ChatID   int64  `json:"chat_id" validate:"required"`
}

// WatcherConfig 상품 가용성 감시 작업을 정의하는 설정 구조체
type WatcherConfig struct {
	BaseURL        string      `json:"base_url" validate:"required,url"`
	Section        string      `json:"section" validate:"required"`
	UserAgent      string      `json:"user_agent"`
	TimeSpec       string      `json:"time_spec" validate:"required"`
	Policy         string      `json:"policy"`
	Timezone       string      `json:"timezone"`
	CollectionLink string      `json:"collection_link" validate:"required,url"`
	Cache          CacheConfig `json:"cache"`
}

func (c *WatcherConfig) validate(v *validator.Validate) error {
	if err := checkStruct(v, c, "감시 작업(Watcher)"); err != nil {
		return err
	}

	// Cron 표현식 검증
	if err := cronx.Validate(c.TimeSpec); err != nil {
		return apperrors.Wrap(err, apperrors.InvalidInput, "감시 작업의 스케줄러(time_spec) 설정이 유효하지 않습니다")
	}

	// 변경 감지 정책 이름 검증
	if _, err := monitor.PolicyByName(c.Policy); err != nil {
		return err
	}

	// 타임존 이름 검증
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return apperrors.Wrap(err, apperrors.InvalidInput, fmt.Sprintf("타임존(timezone) 설정이 유효하지 않습니다: '%s'", c.Timezone))
	}

	// 캐시 저장소 설정 검증
	return c.Cache.validate()
}

// CacheConfig 스냅샷 캐시 저장소를 정의하는 설정 구조체
type CacheConfig struct {
	Backend string `json:"backend"`
	Dir     string `json:"dir"`
	Key     string `json:"key"`
}

func (c *CacheConfig) validate() error {
	switch c.Backend {
	case CacheBackendFile, CacheBackendBolt:
	default:
		return apperrors.New(apperrors.InvalidInput, fmt.Sprintf("지원하지 않는 캐시 저장소(backend)입니다: '%s' (지원: %s, %s)", c.Backend, CacheBackendFile, CacheBackendBolt))
	}

	if strings.TrimSpace(c.Key) == "" {
		return apperrors.New(apperrors.InvalidInput, "캐시 키(key)가 설정되지 않았습니다")
	}

	return nil
}

// PreviewConfig 미리보기 이미지 서버를 정의하는 설정 구조체
type PreviewConfig struct {
	Enabled      bool   `json:"enabled"`
	ListenPort   int    `json:"listen_port" validate:"required_if=Enabled true,omitempty,min=1,max=65535"`
	Secret       string `json:"secret" validate:"required_if=Enabled true"`
	PublicURL    string `json:"public_url" validate:"required_if=Enabled true,omitempty,url"`
	TransformURL string `json:"transform_url" validate:"required_if=Enabled true,omitempty,url"`
	TileSize     int    `json:"tile_size" validate:"min=1"`
	TileSpacing  int    `json:"tile_spacing" validate:"min=0"`
	OutputFormat string `json:"output_format" validate:"required"`
}

func (c *PreviewConfig) validate(v *validator.Validate) error {
	return checkStruct(v, c, "미리보기(Preview)")
}

// Load 기본 설정 파일을 읽어 애플리케이션 설정을 로드합니다.
func Load() (*AppConfig, error) {
	return LoadWithFile(DefaultFilename)
}

// LoadWithFile 지정된 경로의 설정 파일을 읽어 AppConfig 객체를 생성합니다.
func LoadWithFile(filename string) (*AppConfig, error) {
	k := koanf.New(".")

	// 1. 기본값 로드 (가장 낮은 우선순위)
	err := k.Load(confmap.Provider(map[string]interface{}{
		"http_retry.max_retries": DefaultMaxRetries,
		"http_retry.retry_delay": DefaultRetryDelay,
		"watcher.user_agent":     DefaultUserAgent,
		"watcher.policy":         monitor.PolicySubset,
		"watcher.timezone":       DefaultTimezone,
		"watcher.cache.backend":  DefaultCacheBackend,
		"watcher.cache.dir":      DefaultCacheDir,
		"watcher.cache.key":      DefaultCacheKey,
		"preview.tile_size":      DefaultPreviewTileSize,
		"preview.tile_spacing":   DefaultPreviewTileSpacing,
		"preview.output_format":  DefaultPreviewOutputFormat,
	}, "."), nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "애플리케이션 기본 설정 로드에 실패했습니다")
	}

	// 2. JSON 설정 파일 로드 (기본값 덮어쓰기)
	if err := k.Load(file.Provider(filename), json.Parser()); err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Wrap(err, apperrors.System, fmt.Sprintf("설정 파일을 찾을 수 없습니다: '%s'", filename))
		}
		return nil, apperrors.Wrap(err, apperrors.InvalidInput, fmt.Sprintf("설정 파일 로드 중 오류가 발생했습니다: '%s'", filename))
	}

	// 3. 환경 변수 로드 (최우선 순위, JSON 설정 덮어쓰기)
	// 접두사: CW_
	// 구분자: 이중 언더스코어(__)를 점(.)으로 변환 (계층 구조 표현)
	// 예: CW_WATCHER__TIME_SPEC -> watcher.time_spec
	if err := k.Load(env.Provider("CW_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "CW_")
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "환경 변수 로드에 실패했습니다")
	}

	// 4. 구조체 언마샬링 (Strict Validation 적용)
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "json",
		DecoderConfig: &mapstructure.DecoderConfig{
			ErrorUnused:      true, // 파일에 존재하지만 구조체에 없는 필드가 있을 경우 에러를 발생시킴
			WeaklyTypedInput: true,
		},
	}
	var appConfig AppConfig
	if err := k.UnmarshalWithConf("", &appConfig, unmarshalConf); err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "설정 데이터를 애플리케이션 구조체로 변환하는데 실패했습니다")
	}

	// 5. 유효성 검사 수행 (정합성 체크)
	if err := appConfig.validate(newValidator()); err != nil {
		return nil, apperrors.Wrap(err, apperrors.InvalidInput, fmt.Sprintf("설정 파일('%s')의 유효성 검증에 실패했습니다", filename))
	}

	return &appConfig, nil
}
