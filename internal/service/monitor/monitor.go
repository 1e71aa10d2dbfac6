// Package monitor 스토어프론트의 구매 가능 상품 변화를 감시하는 핵심 도메인 로직을 제공합니다.
//
// 매 실행(tick)마다 다음 단계를 순차적으로 수행합니다.
//  1. Snapshot Fetcher: 상품 목록(products.json)을 조회하고 데이터 계약을 검증
//  2. Change Detector: 현재 가용 집합의 식별자를 저장된 값과 정책에 따라 비교
//  3. Notifier: 억제되지 않은 경우 메시지를 만들어 발송하고, 정책에 따라 스냅샷을 저장
package monitor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/darkkaiser/coffee-watcher/internal/pkg/errors"
	"github.com/darkkaiser/coffee-watcher/internal/pkg/mark"
	"github.com/darkkaiser/coffee-watcher/internal/service/contract"
	"github.com/darkkaiser/coffee-watcher/internal/service/monitor/storage"
	"github.com/darkkaiser/coffee-watcher/internal/service/preview"
	"github.com/darkkaiser/coffee-watcher/internal/service/scraper"
	applog "github.com/darkkaiser/coffee-watcher/pkg/log"
	"github.com/tidwall/gjson"
)

// component 모니터링 로깅용 컴포넌트 이름
const component = "monitor"

// Config Monitor 동작에 필요한 불변 설정값입니다.
type Config struct {
	BaseURL   string // 스토어프론트 기본 URL
	Section   string // 감시 대상 컬렉션(섹션) 이름
	UserAgent string // 상품 목록 조회 시 사용할 User-Agent 헤더
	CacheKey  string // 스냅샷을 보관할 캐시 키

	CollectionURL string // 메시지에 포함되는 컬렉션 페이지 링크
	Timezone      string // 변경 시각 표기용 IANA 타임존 이름

	PreviewEnabled   bool   // 미리보기 이미지 링크 삽입 여부
	PreviewPublicURL string // 미리보기 엔드포인트의 외부 공개 URL
}

// Monitor 한 번의 실행(tick) 단위로 상품 가용성 변화를 평가하고 알림을 발송합니다.
type Monitor struct {
	cfg Config

	scraper scraper.Scraper
	store   storage.CacheStore
	sender  contract.NotificationSender
	policy  Policy
	message *MessageBuilder
	tokens  *preview.TokenCodec
}

// New 새로운 Monitor 인스턴스를 생성합니다.
// tokens는 미리보기가 비활성화된 배포에서는 nil일 수 있습니다.
func New(cfg Config, sc scraper.Scraper, store storage.CacheStore, sender contract.NotificationSender, policy Policy, tokens *preview.TokenCodec) (*Monitor, error) {
	builder, err := NewMessageBuilder(cfg.CollectionURL, cfg.Timezone)
	if err != nil {
		return nil, err
	}

	return &Monitor{
		cfg: cfg,

		scraper: sc,
		store:   store,
		sender:  sender,
		policy:  policy,
		message: builder,
		tokens:  tokens,
	}, nil
}

// ListingURL 상품 목록 엔드포인트의 전체 URL을 반환합니다.
func (m *Monitor) ListingURL() string {
	return fmt.Sprintf("%s/collections/%s/products.json", strings.TrimRight(m.cfg.BaseURL, "/"), m.cfg.Section)
}

// RunTick 한 번의 감시 실행을 수행합니다.
//
// 치명적 에러(업스트림 계약 위반, 네트워크 실패, 메인 알림 발송 실패)는
// 진단 채널에 최선 노력으로 보고한 후 호출자에게 전파되어 실행 실패로 기록됩니다.
func (m *Monitor) RunTick(ctx context.Context) error {
	logger := applog.WithComponent(component)

	m.sender.PostDiagnostics(fmt.Sprintf("%s 감시 작업을 시작합니다. (정책: %s)", mark.Bell, m.policy.Name()))

	// 1단계: 상품 목록 조회 및 검증
	listing, raw, err := m.fetchListing(ctx)
	if err != nil {
		m.sender.PostDiagnostics(fmt.Sprintf("%s 상품 목록 조회가 실패하였습니다.\n%v", mark.Alert, err))
		return err
	}

	// 원본 응답 요약을 진단 채널로 전송합니다. (실패해도 실행에는 영향 없음)
	m.postRawSummary(raw)

	// 2단계: 파생 및 변경 감지
	coffees := DeriveCoffees(listing)
	current := NewSnapshot(coffees)
	updatedAt := listing.UpdatedAt()

	stored, err := m.loadStoredSnapshot()
	if err != nil {
		m.sender.PostDiagnostics(fmt.Sprintf("%s 저장된 스냅샷 읽기가 실패하였습니다.\n%v", mark.Alert, err))
		return err
	}

	suppressed := m.policy.ShouldSuppress(current, stored)

	logger.WithFields(applog.Fields{
		"available":  len(coffees),
		"suppressed": suppressed,
		"policy":     m.policy.Name(),
	}).Info("가용 상품 평가 완료")

	// 3단계: 알림 발송
	notified := false
	if !suppressed {
		message := m.message.Build(coffees, updatedAt, m.buildPreviewURL(coffees))

		if err := m.sender.NotifyDefault(ctx, message); err != nil {
			// 메인 알림 발송 실패는 실행을 실패시키기 전에 반드시 진단 채널로 먼저 보고합니다.
			m.sender.PostDiagnostics(fmt.Sprintf("%s 메인 알림 발송이 실패하였습니다.\n%v", mark.Alert, err))

			return apperrors.Wrap(err, apperrors.ExecutionFailed, "메인 알림 발송에 실패하였습니다.")
		}

		notified = true
	}

	// 4단계: 정책에 따른 스냅샷 저장
	if m.policy.ShouldPersist(current, notified) {
		if err := m.store.Save(m.cfg.CacheKey, current.Encode()); err != nil {
			// 저장 실패는 다음 실행에서 중복 알림으로 이어질 수 있으나,
			// 이미 발송된 알림을 되돌릴 수 없으므로 실행을 실패시키지 않고 경고만 남깁니다.
			logger.WithError(err).Warn("스냅샷 저장 실패: 다음 실행에서 동일한 알림이 반복될 수 있습니다")

			m.sender.PostDiagnostics(fmt.Sprintf("%s 스냅샷 저장이 실패하였습니다.\n%v", mark.Alert, err))
		}
	}

	m.sender.PostDiagnostics(fmt.Sprintf("%s 감시 작업이 종료되었습니다. (가용: %d개, 알림 발송: %t)", mark.Bell, len(coffees), notified))

	return nil
}

// fetchListing 상품 목록을 조회하고 데이터 계약을 검증합니다.
func (m *Monitor) fetchListing(ctx context.Context) (*Listing, []byte, error) {
	header := http.Header{}
	header.Set("User-Agent", m.cfg.UserAgent)

	var listing Listing
	raw, err := m.scraper.FetchJSON(ctx, m.ListingURL(), header, &listing)
	if err != nil {
		return nil, nil, err
	}

	if err := listing.Validate(); err != nil {
		return nil, nil, err
	}

	return &listing, raw, nil
}

// loadStoredSnapshot 캐시 저장소에서 이전 스냅샷을 읽어옵니다.
// 값이 없거나 손상된 경우 nil(이전 상태 없음)을 반환합니다.
func (m *Monitor) loadStoredSnapshot() (*Snapshot, error) {
	rawValue, ok, err := m.store.Load(m.cfg.CacheKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		applog.WithComponentAndFields(component, applog.Fields{
			"cache_key": m.cfg.CacheKey,
		}).Info("저장된 스냅샷이 없습니다. 첫 실행으로 간주합니다")

		return nil, nil
	}

	return DecodeSnapshot(rawValue), nil
}

// buildPreviewURL 미리보기 이미지의 서명된 URL을 생성합니다.
// 미리보기가 비활성화되었거나 합성할 이미지가 없으면 빈 문자열을 반환합니다.
func (m *Monitor) buildPreviewURL(coffees []Coffee) string {
	if !m.cfg.PreviewEnabled || m.tokens == nil {
		return ""
	}

	images := ImageURLs(coffees)
	if len(images) == 0 {
		return ""
	}

	token, err := m.tokens.Sign(preview.Payload{Images: images})
	if err != nil {
		// 미리보기 링크는 부가 기능이므로 실패 시 링크 없이 알림을 계속 진행합니다.
		applog.WithComponent(component).WithError(err).Warn("미리보기 토큰 서명 실패: 링크 없이 알림을 발송합니다")

		return ""
	}

	return fmt.Sprintf("%s/?payload=%s", strings.TrimRight(m.cfg.PreviewPublicURL, "/"), url.QueryEscape(token))
}

// postRawSummary 원본 응답의 요약 정보를 진단 채널로 전송합니다. (최선 노력)
func (m *Monitor) postRawSummary(raw []byte) {
	products := gjson.GetBytes(raw, "products.#").Int()
	available := gjson.GetBytes(raw, `products.#(variants.0.available==true)#|#`).Int()
	handles := gjson.GetBytes(raw, "products.#.handle").String()

	m.sender.PostDiagnostics(fmt.Sprintf("상품 목록 수신: 전체 %d개, 가용 %d개\nhandles: %s", products, available, handles))
}
