package notify

import (
	"encoding/json"
	"fmt"

	"bookcal/internal/config"
	"bookcal/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Notifier pushes booking changes to the operator's Telegram chat.
// Delivery is best effort; a failed send is logged and dropped.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *zerolog.Logger
}

func New(cfg config.TelegramConfig, logger *zerolog.Logger) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Notifier{bot: bot, chatID: cfg.ChatID, logger: logger}, nil
}

// Subscribe wires the notifier to booking lifecycle events on the bus.
func (n *Notifier) Subscribe(bus *events.EventBus) {
	for _, eventType := range []string{
		events.EventBookingCreated,
		events.EventBookingUpdated,
		events.EventBookingExtended,
		events.EventBookingDeleted,
	} {
		bus.Subscribe(eventType, n.handle)
	}
}

func (n *Notifier) handle(event *events.Event) error {
	var payload events.BookingEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		n.logger.Warn().Err(err).Str("event", event.Type).Msg("Failed to decode booking event")
		return err
	}

	msg := tgbotapi.NewMessage(n.chatID, FormatEvent(event.Type, payload))
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Warn().Err(err).Str("event", event.Type).Msg("Failed to send telegram notification")
		return err
	}
	return nil
}

// FormatEvent renders one booking event as an operator-readable line.
func FormatEvent(eventType string, p events.BookingEventPayload) string {
	period := fmt.Sprintf("%s → %s", p.StartDate.Format("2006-01-02"), p.EndDate.Format("2006-01-02"))
	switch eventType {
	case events.EventBookingCreated:
		return fmt.Sprintf("New booking: %s — %s, %s (%s)", p.GuestName, p.ApartmentName, period, p.Status)
	case events.EventBookingUpdated:
		return fmt.Sprintf("Booking updated: %s — %s, %s (%s)", p.GuestName, p.ApartmentName, period, p.Status)
	case events.EventBookingExtended:
		return fmt.Sprintf("Booking extended: %s — %s, now until %s", p.GuestName, p.ApartmentName, p.EndDate.Format("2006-01-02"))
	case events.EventBookingDeleted:
		return fmt.Sprintf("Booking deleted: %s — %s, %s", p.GuestName, p.ApartmentName, period)
	default:
		return fmt.Sprintf("Booking event %s: %s — %s, %s", eventType, p.GuestName, p.ApartmentName, period)
	}
}
