package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"signal-billing/internal/config"
	"signal-billing/internal/domain/ports/adapter"
	"signal-billing/internal/infra/metrics"
)

// TelegramNotifier posts billing events to the ops channel. Delivery is best
// effort: a failed send is logged and counted, never propagated into the
// transaction that produced the event.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zerolog.Logger
}

var _ adapter.Notifier = (*TelegramNotifier)(nil)

func NewTelegramNotifier(cfg *config.NotifyConfig, logger *zerolog.Logger) (*TelegramNotifier, error) {
	if cfg == nil || cfg.TelegramToken == "" {
		return nil, fmt.Errorf("telegram token is not configured")
	}
	if cfg.TelegramChatID == 0 {
		return nil, fmt.Errorf("telegram chat id is not configured")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	ntfLog := logger.With().Str("component", "TelegramNotifier").Logger()
	return &TelegramNotifier{bot: bot, chatID: cfg.TelegramChatID, log: &ntfLog}, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, ev adapter.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, formatEvent(ev))
	_, err := n.bot.Send(msg)
	metrics.IncNotification(string(ev.Type), err == nil)
	if err != nil {
		n.log.Warn().Err(err).Str("event", string(ev.Type)).Str("owner_id", ev.OwnerID).Msg("notification send failed")
		return err
	}
	return nil
}

func formatEvent(ev adapter.Event) string {
	var head string
	switch ev.Type {
	case adapter.EventOrderPaid:
		head = "✅ Order paid"
	case adapter.EventLicenseIssued:
		head = "🔑 License issued"
	case adapter.EventTopupCredited:
		head = "💰 Top-up credited"
	case adapter.EventAutoRenewed:
		head = "🔄 Auto-renewed"
	case adapter.EventRenewFailed:
		head = "⚠️ Auto-renew failed"
	default:
		head = string(ev.Type)
	}
	out := fmt.Sprintf("%s\nowner: %s", head, ev.OwnerID)
	if ev.SubjectID != nil {
		out += fmt.Sprintf("\nsubject: %d", *ev.SubjectID)
	}
	if ev.OrderID != nil {
		out += fmt.Sprintf("\norder: %s", *ev.OrderID)
	}
	return out
}

// NopNotifier is used when no ops channel is configured.
type NopNotifier struct{}

var _ adapter.Notifier = (*NopNotifier)(nil)

func (NopNotifier) Notify(context.Context, adapter.Event) error { return nil }
