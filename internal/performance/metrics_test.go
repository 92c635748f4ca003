package performance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peternagy/mongobrowse/internal/connection"
	"github.com/peternagy/mongobrowse/internal/connection/connectiontest"
	"github.com/peternagy/mongobrowse/internal/types"
)

func TestObserveCountsExecutorCalls(t *testing.T) {
	svc := NewService()
	exec := connection.NewExecutor(connectiontest.NewServer(), nil)
	exec.OnTransition = svc.Observe
	target := types.ServerTarget{Label: "test", Addresses: []types.Address{{Host: "localhost", Port: 27017}}}

	require.NoError(t, connection.Run(context.Background(), exec, target, func(ctx context.Context, c connection.Client) error {
		assert.Equal(t, int64(1), svc.GetMetrics().ActiveCalls, "counted while running")
		return nil
	}))
	err := connection.Run(context.Background(), exec, target, func(ctx context.Context, c connection.Client) error {
		return errors.New("boom")
	})
	require.Error(t, err)

	m := svc.GetMetrics()
	assert.Equal(t, uint64(2), m.Calls)
	assert.Equal(t, uint64(1), m.FailedCalls)
	assert.Zero(t, m.ActiveCalls)
}

func TestRows(t *testing.T) {
	m := &Metrics{Calls: 3, HeapAlloc: 2048, UptimeSeconds: 90}
	byKey := map[string]string{}
	for _, r := range m.Rows() {
		byKey[r.Key] = r.Display
	}
	assert.Equal(t, "3", byKey["calls"])
	assert.Equal(t, "2 KB", byKey["heapAlloc"])
	assert.Equal(t, "1m30s", byKey["uptime"])
}
