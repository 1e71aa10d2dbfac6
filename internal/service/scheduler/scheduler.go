// Package scheduler Cron 스케줄에 맞춰 감시 작업(tick)을 주기적으로 실행하는 서비스를 제공합니다.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/darkkaiser/coffee-watcher/internal/pkg/mark"
	"github.com/darkkaiser/coffee-watcher/internal/service/contract"
	"github.com/darkkaiser/coffee-watcher/pkg/cronx"
	applog "github.com/darkkaiser/coffee-watcher/pkg/log"
	"github.com/robfig/cron/v3"
)

// component Scheduler 서비스의 로깅용 컴포넌트 이름
const component = "scheduler.service"

// tickTimeout 한 번의 감시 실행에 허용되는 최대 시간
const tickTimeout = 5 * time.Minute

// TickRunner 스케줄에 따라 반복 실행되는 감시 작업을 추상화한 인터페이스입니다.
type TickRunner interface {
	RunTick(ctx context.Context) error
}

// Scheduler 설정된 Cron 스케줄에 맞춰 감시 작업을 자동으로 실행하는 서비스입니다.
type Scheduler struct {
	timeSpec string

	cron *cron.Cron

	runner TickRunner

	notificationSender contract.NotificationSender

	running   bool
	runningMu sync.Mutex
}

// NewService 새로운 Scheduler 서비스 인스턴스를 생성합니다.
func NewService(timeSpec string, runner TickRunner, notificationSender contract.NotificationSender) *Scheduler {
	if runner == nil {
		panic("TickRunner는 필수입니다")
	}
	if notificationSender == nil {
		panic("NotificationSender는 필수입니다")
	}

	return &Scheduler{
		timeSpec: timeSpec,

		runner: runner,

		notificationSender: notificationSender,
	}
}

// Start 스케줄러를 시작하고 감시 작업을 Cron 엔진에 등록합니다.
func (s *Scheduler) Start(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) error {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()

	applog.WithComponent(component).Info("Scheduler 서비스 시작중...")

	if s.running {
		serviceStopWG.Done()
		applog.WithComponent(component).Warn("Scheduler 서비스가 이미 실행 중입니다 (중복 호출)")
		return nil
	}

	// 1. Cron 엔진 초기화
	// - StandardParser: 초 단위 스케줄링 지원 (6개 필드: 초 분 시 일 월 요일)
	// - Recover: Panic 발생 시 복구하여 스케줄러 전체가 죽지 않도록 함
	// - SkipIfStillRunning: 이전 실행이 끝나지 않았으면 다음 실행을 건너뜀
	s.cron = cron.New(
		cron.WithParser(cronx.StandardParser()),
		cron.WithLogger(cron.VerbosePrintfLogger(applog.StandardLogger())),
		cron.WithChain(
			cron.Recover(cron.VerbosePrintfLogger(applog.StandardLogger())),
			cron.SkipIfStillRunning(cron.VerbosePrintfLogger(applog.StandardLogger())),
		),
	)

	// 2. 감시 작업 등록
	if _, err := s.cron.AddFunc(s.timeSpec, s.runTick); err != nil {
		serviceStopWG.Done()
		return err
	}

	// 3. 스케줄러 시작
	s.cron.Start()
	s.running = true

	applog.WithComponentAndFields(component, applog.Fields{
		"time_spec": s.timeSpec,
	}).Info("Scheduler 서비스 시작됨")

	// 4. 종료 신호 대기 (고루틴)
	go func() {
		defer serviceStopWG.Done()

		<-serviceStopCtx.Done()

		s.Stop()
	}()

	return nil
}

// Stop 실행 중인 스케줄러를 안전하게 중지합니다.
func (s *Scheduler) Stop() {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()

	if !s.running {
		return
	}

	applog.WithComponent(component).Info("Scheduler 서비스 중지중...")

	// Cron 엔진 중지 및 실행 중인 작업 완료 대기
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}

	s.cron = nil
	s.running = false

	applog.WithComponent(component).Info("Scheduler 서비스 중지됨")
}

// runTick 감시 작업 한 건을 실행하고 실패 시 로깅 및 진단 보고를 수행합니다.
//
// 실행 컨텍스트는 서비스 종료 시그널과 분리합니다. Graceful Shutdown 시
// cron.Stop()이 실행 중인 작업의 완료를 대기하므로, 진행 중인 실행을
// 강제로 중단하지 않고 타임아웃으로만 상한을 둡니다.
func (s *Scheduler) runTick() {
	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	if err := s.runner.RunTick(ctx); err != nil {
		message := "감시 작업 실행이 실패하였습니다"

		applog.WithComponentAndFields(component, applog.Fields{
			"error": err,
		}).Error(message)

		s.notificationSender.PostDiagnostics(fmt.Sprintf("%s %s: %v", mark.Alert, message, err))
	}
}
