package notify

import (
	"io"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtbook/internal/events"
)

type fakeSender struct {
	messages []tgbotapi.MessageConfig
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.messages = append(f.messages, msg)
	}
	return tgbotapi.Message{}, nil
}

func newTestNotifier() (*Notifier, *fakeSender, *events.EventBus) {
	logger := zerolog.New(io.Discard)
	sender := &fakeSender{}
	bus := events.NewEventBus()
	notifier := NewNotifier(sender, 42, &logger)
	notifier.SubscribeAll(bus)
	return notifier, sender, bus
}

func TestNotifierBookingRequested(t *testing.T) {
	_, sender, bus := newTestNotifier()

	err := bus.PublishJSON(events.EventBookingRequested, &events.SlotEventPayload{
		SlotID:    7,
		CoachID:   1,
		CoachName: "Petrov",
		PlayerID:  "player-1",
		Date:      "2025-03-10",
		StartTime: "16:00",
		EndTime:   "17:00",
		Status:    "pending",
		Reference: "ref-123",
	})
	require.NoError(t, err)

	require.Len(t, sender.messages, 1)
	msg := sender.messages[0]
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Contains(t, msg.Text, "Новая заявка")
	assert.Contains(t, msg.Text, "Petrov")
	assert.Contains(t, msg.Text, "16:00")
	assert.Contains(t, msg.Text, "ref-123")
}

func TestNotifierStatusChanges(t *testing.T) {
	_, sender, bus := newTestNotifier()

	payload := &events.SlotEventPayload{SlotID: 7, CoachID: 1, PlayerID: "player-1", Date: "2025-03-10"}

	require.NoError(t, bus.PublishJSON(events.EventBookingConfirmed, payload))
	require.NoError(t, bus.PublishJSON(events.EventBookingCancelled, payload))

	require.Len(t, sender.messages, 2)
	assert.Contains(t, sender.messages[0].Text, "подтверждена")
	assert.Contains(t, sender.messages[1].Text, "отменена")
	// имени тренера нет в событии, показываем id
	assert.Contains(t, sender.messages[0].Text, "#1")
}

func TestNotifierRegeneration(t *testing.T) {
	_, sender, bus := newTestNotifier()

	err := bus.PublishJSON(events.EventSlotsRegenerated, &events.RegenerationEventPayload{
		From:    "2025-03-10",
		To:      "2025-04-09",
		Deleted: 12,
		Created: 40,
		Partial: true,
	})
	require.NoError(t, err)

	require.Len(t, sender.messages, 1)
	assert.Contains(t, sender.messages[0].Text, "перегенерировано")
	assert.Contains(t, sender.messages[0].Text, "Создано слотов: 40")
	assert.Contains(t, sender.messages[0].Text, "проверьте логи")
}

func TestNotifierBadPayload(t *testing.T) {
	_, sender, bus := newTestNotifier()

	bus.Publish(&events.Event{Type: events.EventBookingRequested, Payload: []byte("not json")})
	assert.Empty(t, sender.messages)
}
