// Package notification 알림 메시지의 발송 채널(Discord Webhook, Telegram)을 관리하는
// 서비스를 제공합니다.
//
// 각 채널은 Notifier 인터페이스로 추상화되며, 비동기 발송 큐(Post)와
// 동기 발송(Send)을 모두 지원합니다. 정식 알림은 발송 실패를 호출자가
// 알아야 하므로 동기 발송을, 진단 메시지는 fire-and-forget 큐를 사용합니다.
package notification

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/darkkaiser/coffee-watcher/internal/service/contract"
	applog "github.com/darkkaiser/coffee-watcher/pkg/log"
)

// component 알림 서비스 로깅용 컴포넌트 이름
const component = "notification"

// defaultQueueSize 비동기 발송 큐의 버퍼 크기
const defaultQueueSize = 100

// defaultSendTimeout 큐에서 꺼낸 메시지 한 건의 발송 제한 시간
const defaultSendTimeout = 30 * time.Second

// Notifier 알림 채널(Discord Webhook, Telegram 등)을 추상화한 인터페이스입니다.
type Notifier interface {
	// ID Notifier 인스턴스의 고유 식별자를 반환합니다.
	ID() contract.NotifierID

	// Run 발송 큐를 소비하는 백그라운드 워커를 실행합니다.
	// Context가 취소될 때까지 블로킹되며, 종료 시 큐에 남은 메시지를 모두 발송한 후 반환합니다.
	Run(ctx context.Context)

	// Post 메시지를 발송 큐에 등록하고 즉시 반환합니다. (Non-blocking)
	// 큐가 가득 찼거나 Notifier가 종료된 경우 false를 반환합니다.
	Post(message string) bool

	// Send 메시지를 동기적으로 발송하고 결과를 반환합니다.
	Send(ctx context.Context, message string) error

	// Done 워커가 완전히 종료되었음을 알리는 신호 채널을 반환합니다.
	Done() <-chan struct{}
}

// base 모든 Notifier 구현체가 임베딩하는 공통 구조체입니다.
// 큐 관리와 워커 수명주기를 담당하고, 실제 발송은 각 구현체의 Send에 위임합니다.
type base struct {
	id contract.NotifierID

	messageC chan string

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newBase(id contract.NotifierID) *base {
	return &base{
		id: id,

		messageC: make(chan string, defaultQueueSize),

		done: make(chan struct{}),
	}
}

// ID Notifier 인터페이스 구현
func (b *base) ID() contract.NotifierID {
	return b.id
}

// Post Notifier 인터페이스 구현
func (b *base) Post(message string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		applog.WithComponentAndFields(component, applog.Fields{
			"notifier_id": b.id,
		}).Warn("알림 요청 거부: Notifier가 이미 종료되었습니다")

		return false
	}

	select {
	case b.messageC <- message:
		return true

	default:
		applog.WithComponentAndFields(component, applog.Fields{
			"notifier_id": b.id,
		}).Warn("알림 요청 거부: 발송 대기열 용량 초과")

		return false
	}
}

// Done Notifier 인터페이스 구현
func (b *base) Done() <-chan struct{} {
	return b.done
}

// consume 발송 큐를 소비하는 워커 루프입니다. 각 구현체의 Run에서 호출합니다.
//
// Context 취소 시 새로운 Post 요청을 차단한 후, 큐에 남은 메시지를 모두
// 발송(Drain)하고 done 채널을 닫습니다.
func (b *base) consume(ctx context.Context, send func(ctx context.Context, message string) error) {
	defer close(b.done)

	for {
		select {
		case message := <-b.messageC:
			b.sendWithTimeout(message, send)

		case <-ctx.Done():
			b.mu.Lock()
			b.closed = true
			b.mu.Unlock()

			// 종료 전에 큐에 남은 메시지를 모두 발송합니다.
			for {
				select {
				case message := <-b.messageC:
					b.sendWithTimeout(message, send)

				default:
					applog.WithComponentAndFields(component, applog.Fields{
						"notifier_id": b.id,
					}).Debug("Notifier 워커 종료됨")

					return
				}
			}
		}
	}
}

// sendWithTimeout 메시지 한 건을 제한 시간 내에 발송합니다.
// 비동기 큐 경로의 발송 실패는 복구할 방법이 없으므로 로그만 남깁니다.
func (b *base) sendWithTimeout(message string, send func(ctx context.Context, message string) error) {
	sendCtx, cancel := context.WithTimeout(context.Background(), defaultSendTimeout)
	defer cancel()

	if err := send(sendCtx, message); err != nil {
		applog.WithComponentAndFields(component, applog.Fields{
			"notifier_id": b.id,
		}).WithError(err).Error("알림메시지 발송이 실패하였습니다")
	}
}

// splitMessage 채널별 최대 길이를 초과하는 메시지를 여러 조각으로 분할합니다.
//
// 가독성을 위해 줄 단위로 나누는 것을 우선하되, 한 줄이 최대 길이를 초과하면
// 룬(rune) 경계에서 강제로 분할합니다.
func splitMessage(message string, maxLength int) []string {
	if len(message) <= maxLength {
		return []string{message}
	}

	var chunks []string
	var current strings.Builder

	for _, line := range strings.Split(message, "\n") {
		// 한 줄 자체가 최대 길이를 초과하는 경우 룬 경계에서 강제 분할합니다.
		for len(line) > maxLength {
			runes := []rune(line)
			cut := len(runes)
			for cut > 1 && len(string(runes[:cut])) > maxLength {
				cut--
			}

			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			chunks = append(chunks, string(runes[:cut]))
			line = string(runes[cut:])
		}

		if current.Len() > 0 && current.Len()+1+len(line) > maxLength {
			chunks = append(chunks, current.String())
			current.Reset()
		}

		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}
