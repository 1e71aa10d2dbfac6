// Package contract 서비스 간의 순환 참조를 방지하기 위한 공유 인터페이스와 타입을 정의합니다.
package contract

import "context"

// NotifierID Notifier를 식별하는 ID 타입입니다.
type NotifierID string

// NotificationSender 알림 메시지 전송 기능을 추상화한 인터페이스입니다.
//
// 모니터링 서비스는 이 인터페이스를 통해서만 알림을 전송하며,
// 실제 전송 채널(Discord Webhook, Telegram 등)은 notification 서비스가 담당합니다.
type NotificationSender interface {
	// NotifyDefault 기본 Notifier로 메시지를 동기 전송합니다.
	// 전송 실패 여부를 호출자가 알아야 하는 경우(정식 알림 발송)에 사용합니다.
	NotifyDefault(ctx context.Context, message string) error

	// PostDiagnostics 진단용 Notifier의 발송 큐에 메시지를 등록합니다. (fire-and-forget)
	// 큐가 가득 차는 등의 이유로 등록에 실패하면 false를 반환합니다.
	PostDiagnostics(message string) bool
}
