package notify

import (
	"encoding/json"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"courtbook/internal/events"
)

// Sender is the narrow telegram surface the notifier needs.
// *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier пушит админу события бронирований в телеграм. Ошибки отправки
// только логируются, основной поток бронирования от них не зависит.
type Notifier struct {
	sender Sender
	chatID int64
	log    zerolog.Logger
}

func NewNotifier(sender Sender, chatID int64, logger *zerolog.Logger) *Notifier {
	return &Notifier{
		sender: sender,
		chatID: chatID,
		log:    logger.With().Str("component", "notify").Logger(),
	}
}

// SubscribeAll wires the notifier to every event the admin cares about.
func (n *Notifier) SubscribeAll(bus *events.EventBus) {
	bus.Subscribe(events.EventBookingRequested, n.handleSlotEvent)
	bus.Subscribe(events.EventBookingConfirmed, n.handleSlotEvent)
	bus.Subscribe(events.EventBookingCancelled, n.handleSlotEvent)
	bus.Subscribe(events.EventSlotsRegenerated, n.handleRegeneration)
}

func (n *Notifier) handleSlotEvent(ev *events.Event) error {
	var payload events.SlotEventPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		n.log.Error().Err(err).Str("event", ev.Type).Msg("notify: decode payload")
		return nil
	}

	n.send(formatSlotEvent(ev.Type, &payload))
	return nil
}

func (n *Notifier) handleRegeneration(ev *events.Event) error {
	var payload events.RegenerationEventPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		n.log.Error().Err(err).Str("event", ev.Type).Msg("notify: decode payload")
		return nil
	}

	message := fmt.Sprintf(`🔄 Расписание перегенерировано:

📅 Период: %s – %s
🗑 Удалено слотов: %d
✨ Создано слотов: %d`,
		payload.From,
		payload.To,
		payload.Deleted,
		payload.Created)
	if payload.Partial {
		message += "\n\n⚠️ Часть слотов не записалась, проверьте логи"
	}

	n.send(message)
	return nil
}

func (n *Notifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.sender.Send(msg); err != nil {
		n.log.Error().Err(err).Msg("notify: send message")
	}
}

func formatSlotEvent(eventType string, p *events.SlotEventPayload) string {
	title := ""
	switch eventType {
	case events.EventBookingRequested:
		title = "🆕 Новая заявка на тренировку"
	case events.EventBookingConfirmed:
		title = "✅ Бронь подтверждена"
	case events.EventBookingCancelled:
		title = "❌ Бронь отменена"
	default:
		title = eventType
	}

	coach := p.CoachName
	if coach == "" {
		coach = fmt.Sprintf("#%d", p.CoachID)
	}

	message := fmt.Sprintf(`%s:

🎾 Тренер: %s
📅 Дата: %s
🕒 Время: %s – %s
👤 Игрок: %s
🆔 Слот: %d`,
		title,
		coach,
		p.Date,
		p.StartTime,
		p.EndTime,
		p.PlayerID,
		p.SlotID)

	if p.Reference != "" {
		message += fmt.Sprintf("\n📋 Заявка: %s", p.Reference)
	}
	return message
}
