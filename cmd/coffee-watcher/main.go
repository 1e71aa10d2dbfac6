package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/darkkaiser/coffee-watcher/internal/config"
	"github.com/darkkaiser/coffee-watcher/internal/service"
	"github.com/darkkaiser/coffee-watcher/internal/service/api"
	"github.com/darkkaiser/coffee-watcher/internal/service/fetcher"
	"github.com/darkkaiser/coffee-watcher/internal/service/monitor"
	"github.com/darkkaiser/coffee-watcher/internal/service/monitor/storage"
	"github.com/darkkaiser/coffee-watcher/internal/service/notification"
	"github.com/darkkaiser/coffee-watcher/internal/service/preview"
	"github.com/darkkaiser/coffee-watcher/internal/service/scheduler"
	"github.com/darkkaiser/coffee-watcher/internal/service/scraper"
	applog "github.com/darkkaiser/coffee-watcher/pkg/log"
	log "github.com/sirupsen/logrus"
)

// 빌드 정보 변수 (Dockerfile의 ldflags로 주입됨)
var (
	Version     = "dev"     // Git 커밋 해시
	BuildDate   = "unknown" // 빌드 날짜
	BuildNumber = "0"       // 빌드 번호
)

const (
	// maxRetryDelay 재시도 백오프의 상한 대기 시간
	maxRetryDelay = 30 * time.Second

	banner = `
   ____         __   __               __        __     _          _
  / ___| ___   / _| / _|  ___   ___   \ \      / /__ _| |_ ___  | |__   ___  _ __
 | |    / _ \ | |_ | |_  / _ \ / _ \   \ \ /\ / // _' | __/ __| | '_ \ / _ \| '__|
 | |___| (_) ||  _||  _||  __/|  __/    \ V  V /| (_| | || (__  | | | |  __/| |
  \____|\___/ |_|  |_|   \___| \___|     \_/\_/  \__,_|\__\___| |_| |_|\___||_|
                                                             %s
--------------------------------------------------------------------------------
`
)

func main() {
	// 1. 환경설정 로드 (로그 설정에 필요하므로 가장 먼저 수행한다)
	configFile := config.DefaultFilename
	if len(os.Args) > 1 {
		configFile = os.Args[1]
	}

	appConfig, err := config.LoadWithFile(configFile)
	if err != nil {
		// 로거 초기화 전이므로 표준 에러에 출력
		fmt.Fprintf(os.Stderr, "[FATAL] 환경설정 로드 실패: %v\n", err)
		os.Exit(1)
	}

	// 2. 로그 시스템 초기화
	var logOpts applog.Options
	if appConfig.Debug {
		logOpts = applog.NewDevelopmentOptions(config.AppName)
	} else {
		logOpts = applog.NewProductionOptions(config.AppName)
	}

	appLogCloser, err := applog.Setup(logOpts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] 로그 시스템 초기화 실패. 서버 구동을 중단합니다. (Cause: %v)\n", err)
		os.Exit(1)
	}
	defer appLogCloser.Close()

	// 3. 로그 레벨 최종 확정
	applog.SetDebugMode(appConfig.Debug)

	// 아스키아트 출력(https://ko.rakko.tools/tools/68/, 폰트:standard)
	fmt.Printf(banner, Version)

	applog.WithComponentAndFields("main", log.Fields{
		"version":    Version,
		"build_date": BuildDate,
		"build_no":   BuildNumber,
		"go_version": runtime.Version(),
		"env":        map[bool]string{true: "development", false: "production"}[appConfig.Debug],
	}).Info("서버 초기화 시작")

	// 4. 공용 인프라 구성 (HTTP 클라이언트, 캐시 저장소)
	watcherFetcher := fetcher.NewRetryFetcher(
		fetcher.NewHTTPFetcherWithUserAgent(appConfig.Watcher.UserAgent),
		appConfig.HTTPRetry.MaxRetries,
		appConfig.HTTPRetry.RetryDelayDuration(),
		maxRetryDelay,
	)

	cacheStore, err := storage.NewCacheStore(appConfig.Watcher.Cache.Backend, appConfig.Watcher.Cache.Dir)
	if err != nil {
		log.Fatalf("캐시 저장소 초기화 실패: %v", err)
	}

	// 5. 서비스를 생성하고 초기화한다.
	notificationService := notification.NewService(appConfig, fetcher.NewHTTPFetcher())

	policy, err := monitor.PolicyByName(appConfig.Watcher.Policy)
	if err != nil {
		log.Fatalf("변경 감지 정책 초기화 실패: %v", err)
	}

	var tokens *preview.TokenCodec
	if appConfig.Preview.Enabled {
		tokens, err = preview.NewTokenCodec(appConfig.Preview.Secret)
		if err != nil {
			log.Fatalf("미리보기 토큰 초기화 실패: %v", err)
		}
	}

	watcher, err := monitor.New(monitor.Config{
		BaseURL:   appConfig.Watcher.BaseURL,
		Section:   appConfig.Watcher.Section,
		UserAgent: appConfig.Watcher.UserAgent,
		CacheKey:  appConfig.Watcher.Cache.Key,

		CollectionURL: appConfig.Watcher.CollectionLink,
		Timezone:      appConfig.Watcher.Timezone,

		PreviewEnabled:   appConfig.Preview.Enabled,
		PreviewPublicURL: appConfig.Preview.PublicURL,
	}, scraper.New(watcherFetcher), cacheStore, notificationService, policy, tokens)
	if err != nil {
		log.Fatalf("감시 작업 초기화 실패: %v", err)
	}

	schedulerService := scheduler.NewService(appConfig.Watcher.TimeSpec, watcher, notificationService)

	services := []service.Service{notificationService, schedulerService}

	// 미리보기가 활성화된 경우에만 HTTP 서버를 구동한다.
	if appConfig.Preview.Enabled {
		transform := preview.NewTransformClient(appConfig.Preview.TransformURL, watcherFetcher)

		renderer, err := preview.NewRenderer(
			transform,
			watcherFetcher,
			appConfig.Preview.TileSize,
			appConfig.Preview.TileSpacing,
			appConfig.Preview.OutputFormat,
		)
		if err != nil {
			log.Fatalf("미리보기 렌더러 초기화 실패: %v", err)
		}

		apiService := api.NewService(appConfig, api.NewHandler(tokens, renderer), notificationService)
		services = append(services, apiService)
	}

	// Set up cancellation context and waitgroup
	serviceStopCtx, cancel := context.WithCancel(context.Background())
	serviceStopWG := &sync.WaitGroup{}

	// 6. 서비스를 시작한다.
	for _, s := range services {
		serviceStopWG.Add(1)
		if err := s.Start(serviceStopCtx, serviceStopWG); err != nil {
			applog.WithComponentAndFields("main", log.Fields{
				"error": err,
			}).Error("서비스 초기화 실패")

			cancel() // 다른 서비스들도 종료
			serviceStopWG.Wait()

			log.Fatal("서비스 초기화 실패로 프로그램을 종료합니다")
		}
	}

	// Handle sigterm and await termC signal
	termC := make(chan os.Signal, 1)
	signal.Notify(termC, syscall.SIGINT, syscall.SIGTERM)

	applog.WithComponent("main").Info("서버 가동 완료")

	<-termC // Blocks here until interrupted

	// Handle shutdown
	applog.WithComponent("main").Info("Shutdown signal received")
	cancel()             // Signal cancellation to context.Context
	serviceStopWG.Wait() // Block here until are workers are done
}
