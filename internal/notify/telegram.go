package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/tendersniper/tender-sniper/internal/core/domain"
)

const sendPause = 100 * time.Millisecond

// TelegramSink delivers notifications over the Bot API with inline
// actions. Extra chats from filter.notify_chat_ids receive a copy; the
// outcome of the subscriber's own chat decides the delivery state.
type TelegramSink struct {
	api    *tgbotapi.BotAPI
	logger *zerolog.Logger
}

func NewTelegramSink(token string, logger *zerolog.Logger) (*TelegramSink, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	return &TelegramSink{api: api, logger: logger}, nil
}

func (s *TelegramSink) Send(ctx context.Context, subscriber *domain.Subscriber, filter *domain.Filter, tender *domain.EnrichedTender, report *domain.ScoreReport) Outcome {
	text := RenderMessage(filter, tender, report)
	markup := actionKeyboard(tender)

	outcome := s.sendTo(subscriber.ChatID, text, &markup)
	if outcome != Sent {
		return outcome
	}

	// Copies to alternative chats are best-effort and share the
	// subscriber's quota charged by the caller.
	for _, chatID := range filter.NotifyChatIDs {
		if chatID == subscriber.ChatID {
			continue
		}

		select {
		case <-ctx.Done():
			return Sent
		case <-time.After(sendPause):
		}

		if extra := s.sendTo(chatID, text, &markup); extra != Sent {
			s.logger.Warn().Int64("chat_id", chatID).Int64("filter_id", filter.ID).Msg("failed to copy notification to extra chat")
		}
	}

	return Sent
}

func (s *TelegramSink) sendTo(chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) Outcome {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if markup != nil {
		msg.ReplyMarkup = *markup
	}

	if _, err := s.api.Send(msg); err != nil {
		outcome := ClassifyError(err)

		s.logger.Error().Err(err).Int64("chat_id", chatID).Int("outcome", int(outcome)).Msg("failed to send notification")

		return outcome
	}

	return Sent
}

func actionKeyboard(tender *domain.EnrichedTender) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("Открыть", tender.URL),
			tgbotapi.NewInlineKeyboardButtonData("Интересно", "tender:like:"+tender.ID),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Пропустить", "tender:skip:"+tender.ID),
			tgbotapi.NewInlineKeyboardButtonData("Скрыть", "tender:hide:"+tender.ID),
		),
	)
}

// Permanent-failure markers of the Bot API: recipient is unreachable
// until they interact with the bot again.
var permanentMarkers = []string{
	"bot was blocked by the user",
	"user is deactivated",
	"chat not found",
	"bot can't initiate conversation",
	"bot was kicked",
}

// ClassifyError buckets a Bot API error into Transient or Permanent.
func ClassifyError(err error) Outcome {
	var apiErr *tgbotapi.Error

	if errors.As(err, &apiErr) {
		if apiErr.Code == 403 {
			return Permanent
		}

		lower := strings.ToLower(apiErr.Message)
		for _, marker := range permanentMarkers {
			if strings.Contains(lower, marker) {
				return Permanent
			}
		}

		// 429 and 5xx are retryable.
		return Transient
	}

	// Network-level failures: timeout, refused connection.
	return Transient
}
