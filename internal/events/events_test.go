package events

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishesToSubscribersOfType(t *testing.T) {
	bus := NewEventBus(zerolog.Nop())

	var got []Event
	bus.Subscribe(ReservationCommitted, func(ev Event) error {
		got = append(got, ev)
		return nil
	})
	bus.Subscribe(ReservationCommitted, func(Event) error {
		return errors.New("handler failure does not stop delivery")
	})
	bus.Subscribe(ReservationCommitted, func(ev Event) error {
		got = append(got, ev)
		return nil
	})
	bus.Subscribe(ReservationRejected, func(Event) error {
		t.Fatal("unexpected delivery")
		return nil
	})

	bus.Publish(New(ReservationCommitted, "t1", "r1", map[string]string{"roomId": "room-1"}))

	require.Len(t, got, 2)
	assert.Equal(t, "r1", got[0].ReservationID)
	assert.False(t, got[0].CreatedAt.IsZero())

	var payload map[string]string
	require.NoError(t, got[0].Decode(&payload))
	assert.Equal(t, "room-1", payload["roomId"])
}

func TestEventBus_FillsCreatedAt(t *testing.T) {
	bus := NewEventBus(zerolog.Nop())
	var seen Event
	bus.Subscribe(ReservationStatusChanged, func(ev Event) error {
		seen = ev
		return nil
	})
	bus.Publish(Event{Type: ReservationStatusChanged})
	assert.False(t, seen.CreatedAt.IsZero())
}
