package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	apperrors "github.com/darkkaiser/coffee-watcher/internal/pkg/errors"
	"github.com/darkkaiser/coffee-watcher/internal/service/contract"
	"github.com/darkkaiser/coffee-watcher/internal/service/fetcher"
)

// discordMaxMessageLength Discord 메시지 본문의 최대 길이 (Discord API 제한)
const discordMaxMessageLength = 2000

// discordWebhookPayload Discord Webhook으로 전송되는 요청 본문입니다.
type discordWebhookPayload struct {
	Content string `json:"content"`
}

// discordNotifier Discord 호환 Webhook으로 메시지를 발송하는 Notifier입니다.
type discordNotifier struct {
	*base

	webhookURL string
	fetcher    fetcher.Fetcher
}

func newDiscordNotifier(id contract.NotifierID, webhookURL string, f fetcher.Fetcher) *discordNotifier {
	return &discordNotifier{
		base: newBase(id),

		webhookURL: webhookURL,
		fetcher:    f,
	}
}

// Run Notifier 인터페이스 구현
func (n *discordNotifier) Run(ctx context.Context) {
	n.consume(ctx, n.Send)
}

// Send Notifier 인터페이스 구현
// 최대 길이를 초과하는 메시지는 여러 건으로 분할하여 순차 발송합니다.
func (n *discordNotifier) Send(ctx context.Context, message string) error {
	for _, chunk := range splitMessage(message, discordMaxMessageLength) {
		if err := n.post(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (n *discordNotifier) post(ctx context.Context, content string) error {
	body, err := json.Marshal(discordWebhookPayload{Content: content})
	if err != nil {
		return apperrors.Wrap(err, apperrors.Internal, "Webhook 요청 본문 직렬화가 실패하였습니다.")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return apperrors.Wrap(err, apperrors.Internal, "Webhook 요청 생성이 실패하였습니다.")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.fetcher.Do(req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.Unavailable, "Webhook 호출 중 네트워크 에러가 발생하였습니다.")
	}
	defer resp.Body.Close()

	// Webhook은 성공 시 204 No Content를 반환하므로 2xx 전체를 성공으로 취급합니다.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var bodySnippet string
		if bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096)); len(bodyBytes) > 0 {
			bodySnippet = string(bodyBytes)
		}

		return apperrors.Newf(apperrors.ExecutionFailed, "Webhook이 실패 상태 코드를 반환하였습니다. (%s, 본문: %s)", resp.Status, bodySnippet)
	}

	return nil
}
