package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/darkkaiser/coffee-watcher/internal/config"
	"github.com/darkkaiser/coffee-watcher/internal/service/contract"
	applog "github.com/darkkaiser/coffee-watcher/pkg/log"
	"github.com/labstack/echo/v4"
)

const (
	// shutdownTimeout Graceful Shutdown 시 최대 대기 시간 (5초)
	shutdownTimeout = 5 * time.Second
)

// Service 미리보기 HTTP 서버의 생명주기를 관리하는 서비스입니다.
//
// 서비스는 고루틴으로 실행되며, context를 통해 종료 신호를 받습니다.
// Start() 메서드로 시작하고, context 취소로 종료됩니다.
type Service struct {
	appConfig *config.AppConfig

	handler *Handler

	sender contract.NotificationSender

	running   bool
	runningMu sync.Mutex
}

// NewService Service 인스턴스를 생성합니다.
func NewService(appConfig *config.AppConfig, handler *Handler, sender contract.NotificationSender) *Service {
	return &Service{
		appConfig: appConfig,

		handler: handler,

		sender: sender,
	}
}

// Start 미리보기 HTTP 서버를 시작합니다.
// 이 함수는 즉시 반환되며, 실제 서버는 고루틴에서 실행됩니다.
func (s *Service) Start(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) error {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()

	applog.WithComponent(component).Info("API 서비스 시작중...")

	if s.running {
		defer serviceStopWG.Done()
		applog.WithComponent(component).Warn("API 서비스가 이미 시작됨!!!")
		return nil
	}

	s.running = true

	go s.runServiceLoop(serviceStopCtx, serviceStopWG)

	applog.WithComponent(component).Info("API 서비스 시작됨")

	return nil
}

// runServiceLoop 서비스의 메인 실행 루프입니다.
// 서버 설정, HTTP 서버 시작, Shutdown 대기를 순차적으로 수행합니다.
func (s *Service) runServiceLoop(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) {
	defer serviceStopWG.Done()

	e := NewHTTPServer(HTTPServerConfig{
		Debug: s.appConfig.Debug,
	})
	SetupRoutes(e, s.handler)

	httpServerDone := make(chan struct{})
	go s.startHTTPServer(e, httpServerDone)

	s.waitForShutdown(serviceStopCtx, e, httpServerDone)
}

// startHTTPServer HTTP 서버를 시작합니다.
// 이 함수는 블로킹되며, 서버가 종료될 때까지 반환되지 않습니다.
func (s *Service) startHTTPServer(e *echo.Echo, done chan struct{}) {
	defer close(done)

	port := s.appConfig.Preview.ListenPort
	applog.WithComponentAndFields(component, applog.Fields{
		"port": port,
	}).Debug("미리보기 HTTP 서버 시작중...")

	s.handleServerError(e.Start(fmt.Sprintf(":%d", port)))
}

// handleServerError HTTP 서버 종료 시 반환된 에러를 처리합니다.
// Graceful Shutdown(http.ErrServerClosed)은 정상 종료로 취급하고,
// 그 외의 에러는 로깅 후 진단 채널로 보고합니다.
func (s *Service) handleServerError(err error) {
	if err == nil {
		return
	}

	if errors.Is(err, http.ErrServerClosed) {
		applog.WithComponent(component).Info("미리보기 HTTP 서버 중지됨")
		return
	}

	message := "미리보기 HTTP 서버에서 치명적인 에러가 발생하였습니다"
	applog.WithComponentAndFields(component, applog.Fields{
		"port":  s.appConfig.Preview.ListenPort,
		"error": err,
	}).Error(message)

	s.sender.PostDiagnostics(fmt.Sprintf("%s\n%v", message, err))
}

// waitForShutdown 종료 신호를 대기하고 Graceful Shutdown을 수행합니다.
func (s *Service) waitForShutdown(serviceStopCtx context.Context, e *echo.Echo, httpServerDone chan struct{}) {
	select {
	case <-serviceStopCtx.Done():
		// 정상적인 종료 신호 수신
		applog.WithComponent(component).Info("API 서비스 중지중...")

	case <-httpServerDone:
		// HTTP 서버가 예기치 않게 종료됨 (포트 바인딩 실패 등)
		applog.WithComponent(component).Error("미리보기 HTTP 서버가 예기치 않게 종료되었습니다")

		s.cleanup()

		return
	}

	// Graceful Shutdown 시작 (5초 타임아웃)
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"error": err,
		}).Error("미리보기 HTTP 서버 Shutdown 중 에러가 발생하였습니다")
	}

	// HTTP 서버 완전 종료 대기
	<-httpServerDone

	s.cleanup()

	applog.WithComponent(component).Info("API 서비스 중지됨")
}

func (s *Service) cleanup() {
	s.runningMu.Lock()
	s.running = false
	s.runningMu.Unlock()
}
