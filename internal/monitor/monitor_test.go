package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/mv82/webpool/internal/logger"
	"github.com/mv82/webpool/pkg/pool"
)

func testLogger() *logger.Logger {
	return logger.New(io.Discard, logger.LevelError)
}

// stoppedPool returns a pool that has processed exactly jobs jobs and shut
// down, so every stat it reports is deterministic.
func stoppedPool(t *testing.T, size, jobs int) *pool.Pool {
	t.Helper()

	p, err := pool.New(size)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(jobs)
	for i := 0; i < jobs; i++ {
		require.NoError(t, p.SubmitFunc(wg.Done))
	}
	wg.Wait()
	p.Shutdown()
	return p
}

func startMonitor(t *testing.T, p *pool.Pool, opts ...Option) *Server {
	t.Helper()

	srv := New("127.0.0.1:0", p, testLogger(), opts...)
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)
	return srv
}

func TestMonitor_StatsEndpoint(t *testing.T) {
	p := stoppedPool(t, 2, 3)
	srv := startMonitor(t, p)

	resp, err := http.Get(fmt.Sprintf("http://%s/api/stats", srv.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var stats StatsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))

	assert.Equal(t, "stopped", stats.State)
	assert.Equal(t, 2, stats.PoolSize)
	assert.Equal(t, 0, stats.ActiveWorkers)
	assert.Equal(t, 0, stats.QueueLength)
	assert.Equal(t, int64(3), stats.TotalProcessed)
	assert.Equal(t, int64(0), stats.TotalRecovered)
	assert.GreaterOrEqual(t, stats.UptimeSeconds, 0.0)
}

func TestMonitor_WorkersEndpoint(t *testing.T) {
	p := stoppedPool(t, 2, 4)
	srv := startMonitor(t, p)

	resp, err := http.Get(fmt.Sprintf("http://%s/api/workers", srv.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var workers []WorkerInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&workers))
	require.Len(t, workers, 2)

	var total int64
	for i, w := range workers {
		assert.Equal(t, i, w.ID)
		assert.Equal(t, "stopped", w.State)
		assert.False(t, w.Active)
		total += w.Processed
	}
	assert.Equal(t, int64(4), total)
}

func TestMonitor_MethodNotAllowed(t *testing.T) {
	p := stoppedPool(t, 1, 0)
	srv := startMonitor(t, p)

	for _, path := range []string{"/api/stats", "/api/workers"} {
		resp, err := http.Post(fmt.Sprintf("http://%s%s", srv.Addr(), path), "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, path)
	}
}

func TestMonitor_WebSocketBroadcast(t *testing.T) {
	mock := quartz.NewMock(t)
	p := stoppedPool(t, 2, 5)
	srv := startMonitor(t, p, WithClock(mock), WithInterval(time.Second))

	origin := fmt.Sprintf("http://%s/", srv.Addr())
	url := fmt.Sprintf("ws://%s/ws", srv.Addr())
	ws, err := websocket.Dial(url, "", origin)
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool {
		return srv.clientCount() == 1
	}, 2*time.Second, 10*time.Millisecond, "websocket client never registered")

	msgCh := make(chan string, 1)
	go func() {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err == nil {
			msgCh <- msg
		}
	}()

	var raw string
	require.Eventually(t, func() bool {
		mock.Advance(time.Second).MustWait(context.Background())
		select {
		case raw = <-msgCh:
			return true
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond, "no broadcast arrived")

	var payload struct {
		Type  string        `json:"type"`
		Stats StatsResponse `json:"stats"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	assert.Equal(t, "stats", payload.Type)
	assert.Equal(t, 2, payload.Stats.PoolSize)
	assert.Equal(t, int64(5), payload.Stats.TotalProcessed)
	assert.Equal(t, "stopped", payload.Stats.State)
}

func TestMonitor_StopIdempotent(t *testing.T) {
	p := stoppedPool(t, 1, 0)

	// Stop before Start is a no-op
	fresh := New("127.0.0.1:0", p, testLogger())
	fresh.Stop()

	srv := startMonitor(t, p)
	srv.Stop()
	srv.Stop()

	_, err := http.Get(fmt.Sprintf("http://%s/api/stats", srv.Addr()))
	assert.Error(t, err)
}
