package chat

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSweeper_RunsAndStops(t *testing.T) {
	registry := &memRegistry{reachable: map[string]bool{}}

	s := NewSweeper(registry, 10*time.Millisecond, time.Minute, zerolog.Nop())
	s.Start()

	require.Eventually(t, func() bool { return registry.sweepCount() >= 2 }, time.Second, 5*time.Millisecond)

	s.Stop()
	after := registry.sweepCount()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, after, registry.sweepCount(), "no sweeps after Stop")
}
