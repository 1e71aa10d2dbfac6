package notification

import (
	"context"
	"sync"

	"github.com/darkkaiser/coffee-watcher/internal/config"
	apperrors "github.com/darkkaiser/coffee-watcher/internal/pkg/errors"
	"github.com/darkkaiser/coffee-watcher/internal/service/contract"
	"github.com/darkkaiser/coffee-watcher/internal/service/fetcher"
	applog "github.com/darkkaiser/coffee-watcher/pkg/log"
)

// Service 설정된 모든 Notifier의 수명주기를 관리하고,
// contract.NotificationSender 인터페이스를 통해 알림 발송 창구 역할을 합니다.
type Service struct {
	appConfig *config.AppConfig

	fetcher fetcher.Fetcher

	notifiers           []Notifier
	defaultNotifier     Notifier
	diagnosticsNotifier Notifier

	// notifiersStopWG 모든 하위 Notifier 워커의 종료를 대기하는 WaitGroup
	notifiersStopWG *sync.WaitGroup

	running   bool
	runningMu sync.Mutex
}

// NewService 새로운 알림 서비스를 생성합니다.
func NewService(appConfig *config.AppConfig, f fetcher.Fetcher) *Service {
	return &Service{
		appConfig: appConfig,

		fetcher: f,

		notifiersStopWG: &sync.WaitGroup{},
	}
}

// Start 알림 서비스를 시작하여 설정된 Notifier들을 활성화합니다.
func (s *Service) Start(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) error {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()

	applog.WithComponent(component).Info("Notification 서비스 시작중...")

	if s.running {
		defer serviceStopWG.Done()
		applog.WithComponent(component).Warn("Notification 서비스가 이미 시작됨!!!")
		return nil
	}

	// 1. 설정으로부터 Notifier들을 생성
	notifiers, err := s.createNotifiers()
	if err != nil {
		defer serviceStopWG.Done()
		return apperrors.Wrap(err, apperrors.Internal, "Notifier 초기화 중 에러가 발생했습니다")
	}

	defaultNotifierID := contract.NotifierID(s.appConfig.Notifiers.DefaultNotifierID)
	diagnosticsNotifierID := contract.NotifierID(s.appConfig.Notifiers.DiagnosticsNotifierID)

	for _, n := range notifiers {
		s.notifiers = append(s.notifiers, n)

		if n.ID() == defaultNotifierID {
			s.defaultNotifier = n
		}
		if n.ID() == diagnosticsNotifierID {
			s.diagnosticsNotifier = n
		}

		s.notifiersStopWG.Add(1)

		go func(notifier Notifier) {
			defer s.notifiersStopWG.Done()
			notifier.Run(serviceStopCtx)
		}(n)

		applog.WithComponentAndFields(component, applog.Fields{
			"notifier_id": n.ID(),
		}).Debug("Notifier가 Notification 서비스에 등록됨")
	}

	// 2. 기본/진단 Notifier 존재 여부 확인
	if s.defaultNotifier == nil {
		defer serviceStopWG.Done()
		return apperrors.Newf(apperrors.NotFound, "기본 NotifierID('%s')를 찾을 수 없습니다", defaultNotifierID)
	}
	if s.diagnosticsNotifier == nil {
		defer serviceStopWG.Done()
		return apperrors.Newf(apperrors.NotFound, "진단용 NotifierID('%s')를 찾을 수 없습니다", diagnosticsNotifierID)
	}

	// 3. 서비스 종료 감시 루틴 실행
	go s.waitForShutdown(serviceStopCtx, serviceStopWG)

	s.running = true

	applog.WithComponent(component).Info("Notification 서비스 시작됨")

	return nil
}

// createNotifiers 설정 파일에 정의된 모든 알림 채널의 Notifier를 생성합니다.
func (s *Service) createNotifiers() ([]Notifier, error) {
	var notifiers []Notifier
	seen := make(map[contract.NotifierID]struct{})

	register := func(id contract.NotifierID, n Notifier) error {
		if _, exists := seen[id]; exists {
			return apperrors.Newf(apperrors.InvalidInput, "NotifierID('%s')가 중복 정의되었습니다", id)
		}
		seen[id] = struct{}{}
		notifiers = append(notifiers, n)
		return nil
	}

	for _, c := range s.appConfig.Notifiers.Discords {
		id := contract.NotifierID(c.ID)
		if err := register(id, newDiscordNotifier(id, c.WebhookURL, s.fetcher)); err != nil {
			return nil, err
		}
	}

	for _, c := range s.appConfig.Notifiers.Telegrams {
		id := contract.NotifierID(c.ID)
		n, err := newTelegramNotifier(id, c.BotToken, c.ChatID)
		if err != nil {
			return nil, err
		}
		if err := register(id, n); err != nil {
			return nil, err
		}
	}

	return notifiers, nil
}

// waitForShutdown 서비스의 종료 신호를 감지하고 리소스를 안전하게 정리합니다.
func (s *Service) waitForShutdown(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) {
	defer serviceStopWG.Done()

	<-serviceStopCtx.Done()

	applog.WithComponent(component).Info("Notification 서비스 중지중...")

	// 등록된 모든 Notifier 워커가 큐를 비우고 종료될 때까지 대기합니다.
	s.notifiersStopWG.Wait()

	s.runningMu.Lock()
	s.running = false
	s.notifiers = nil
	s.defaultNotifier = nil
	s.diagnosticsNotifier = nil
	s.runningMu.Unlock()

	applog.WithComponent(component).Info("Notification 서비스 중지됨")
}

// NotifyDefault 기본 알림 채널로 메시지를 동기 발송합니다.
// contract.NotificationSender 인터페이스 구현
func (s *Service) NotifyDefault(ctx context.Context, message string) error {
	s.runningMu.Lock()
	notifier := s.defaultNotifier
	s.runningMu.Unlock()

	if notifier == nil {
		return apperrors.New(apperrors.Unavailable, "Notification 서비스가 중지된 상태여서 메시지를 전송할 수 없습니다")
	}

	return notifier.Send(ctx, message)
}

// PostDiagnostics 진단용 알림 채널의 발송 큐에 메시지를 등록합니다. (fire-and-forget)
// contract.NotificationSender 인터페이스 구현
func (s *Service) PostDiagnostics(message string) bool {
	s.runningMu.Lock()
	notifier := s.diagnosticsNotifier
	s.runningMu.Unlock()

	if notifier == nil {
		applog.WithComponent(component).Warn("Notification 서비스가 중지된 상태여서 진단 메시지를 전송할 수 없습니다")
		return false
	}

	return notifier.Post(message)
}
