package server

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etf-chunk-lab/internal/simulation"
)

func TestHub_PublishSubscribe(t *testing.T) {
	hub := NewHub(nil, zerolog.Nop(), nil)

	updates, cancel := hub.Subscribe("r1")
	defer cancel()

	hub.Publish(simulation.Progress{RunID: "r1", Day: 10})
	hub.Publish(simulation.Progress{RunID: "other", Day: 99})
	hub.Publish(simulation.Progress{RunID: "r1", Day: 20, Done: true})
	hub.Finish("r1")

	var days []int
	for p := range updates {
		days = append(days, p.Day)
	}
	assert.Equal(t, []int{10, 20}, days)
}

func TestHub_LateSubscriberGetsLatest(t *testing.T) {
	hub := NewHub(nil, zerolog.Nop(), nil)

	hub.Publish(simulation.Progress{RunID: "r1", Day: 5})
	hub.Publish(simulation.Progress{RunID: "r1", Day: 15})

	updates, cancel := hub.Subscribe("r1")
	defer cancel()

	p := <-updates
	assert.Equal(t, 15, p.Day)

	last, ok := hub.Last("r1")
	require.True(t, ok)
	assert.Equal(t, 15, last.Day)
}

func TestHub_SubscribeAfterFinish(t *testing.T) {
	hub := NewHub(nil, zerolog.Nop(), nil)

	hub.Publish(simulation.Progress{RunID: "r1", Day: 30, Done: true})
	hub.Finish("r1")
	// Ignored once finished.
	hub.Publish(simulation.Progress{RunID: "r1", Day: 31})

	updates, cancel := hub.Subscribe("r1")
	defer cancel()

	p, ok := <-updates
	require.True(t, ok)
	assert.Equal(t, 30, p.Day)

	_, ok = <-updates
	assert.False(t, ok, "channel should be closed")
}

func TestHub_SlowSubscriberDropsUpdates(t *testing.T) {
	hub := NewHub(&HubConfig{Buffer: 1}, zerolog.Nop(), nil)

	updates, cancel := hub.Subscribe("r1")
	defer cancel()

	for day := 1; day <= 10; day++ {
		hub.Publish(simulation.Progress{RunID: "r1", Day: day})
	}
	hub.Finish("r1")

	count := 0
	for range updates {
		count++
	}
	assert.Equal(t, 2, count)
}

func TestHub_CancelIsIdempotent(t *testing.T) {
	hub := NewHub(nil, zerolog.Nop(), nil)

	updates, cancel := hub.Subscribe("r1")
	cancel()
	cancel()

	_, ok := <-updates
	assert.False(t, ok)

	// Finishing after cancel must not close the channel twice.
	assert.NotPanics(t, func() { hub.Finish("r1") })
}
