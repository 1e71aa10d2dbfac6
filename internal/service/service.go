// Package service 애플리케이션을 구성하는 서비스들의 공통 생명주기 계약을 정의합니다.
package service

import (
	"context"
	"sync"
)

// Service 애플리케이션에서 실행되는 서비스의 공통 인터페이스입니다.
//
// 서비스는 Start() 호출 시 자신의 작업 고루틴을 시작하고,
// serviceStopCtx가 취소되면 정리 작업을 수행한 후 serviceStopWG.Done()을 호출해야 합니다.
type Service interface {
	Start(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) error
}
