package notification

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	apperrors "github.com/darkkaiser/coffee-watcher/internal/pkg/errors"
	"github.com/darkkaiser/coffee-watcher/internal/service/contract"
)

// telegramMaxMessageLength Telegram 메시지 본문의 최대 길이 (Telegram Bot API 제한)
const telegramMaxMessageLength = 4096

// telegramNotifier Telegram Bot API로 메시지를 발송하는 단방향(발송 전용) Notifier입니다.
// 수신(명령어 처리) 기능은 없으며, 알림 발송에만 사용됩니다.
type telegramNotifier struct {
	*base

	bot    *tgbotapi.BotAPI
	chatID int64
}

func newTelegramNotifier(id contract.NotifierID, botToken string, chatID int64) (*telegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.Unavailable, "Telegram Bot(%s) 연결이 실패하였습니다.", id)
	}

	return &telegramNotifier{
		base: newBase(id),

		bot:    bot,
		chatID: chatID,
	}, nil
}

// Run Notifier 인터페이스 구현
func (n *telegramNotifier) Run(ctx context.Context) {
	n.consume(ctx, n.Send)
}

// Send Notifier 인터페이스 구현
// 최대 길이를 초과하는 메시지는 여러 건으로 분할하여 순차 발송합니다.
func (n *telegramNotifier) Send(_ context.Context, message string) error {
	for _, chunk := range splitMessage(message, telegramMaxMessageLength) {
		msg := tgbotapi.NewMessage(n.chatID, chunk)
		msg.DisableWebPagePreview = true

		if _, err := n.bot.Send(msg); err != nil {
			return apperrors.Wrapf(err, apperrors.ExecutionFailed, "Telegram 메시지 발송이 실패하였습니다. (NotifierID: %s)", n.ID())
		}
	}
	return nil
}
