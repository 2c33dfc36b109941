package monitor

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veni-vidi-vici-dormivi/HPC4WC/runner"
)

func dialHub(t *testing.T, h *Hub) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(h.Handler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func TestHub_BroadcastReachesClient(t *testing.T) {
	h := NewHub()
	defer h.Close()

	conn, done := dialHub(t, h)
	defer done()

	// registration races the broadcast; give the handler a beat
	time.Sleep(50 * time.Millisecond)
	h.Broadcast(Update{Iteration: 7, Timings: map[string]float64{"interior": 0.5}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Update
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, 7, got.Iteration)
	assert.Equal(t, 0.5, got.Timings["interior"])
}

func TestHub_OnIterationConvertsSnapshot(t *testing.T) {
	h := NewHub()
	defer h.Close()

	conn, done := dialHub(t, h)
	defer done()

	time.Sleep(50 * time.Millisecond)
	h.OnIteration(3, map[runner.Phase]float64{
		runner.PhaseInterior: 1.25,
		runner.PhaseSeam:     0.25,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Update
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, 3, got.Iteration)
	assert.Equal(t, 1.25, got.Timings["interior"])
	assert.Equal(t, 0.25, got.Timings["seam"])
}

func TestHub_BroadcastWithNoClients(t *testing.T) {
	h := NewHub()
	defer h.Close()
	// must be a no-op, not a panic
	h.Broadcast(Update{Iteration: 1})
}

func TestHub_DropsClosedClients(t *testing.T) {
	h := NewHub()
	defer h.Close()

	conn, done := dialHub(t, h)
	time.Sleep(50 * time.Millisecond)
	conn.Close()
	done()

	// two broadcasts: the first may hit the dead connection before the
	// write error surfaces, the second must find it evicted or evict it
	h.Broadcast(Update{Iteration: 1})
	h.Broadcast(Update{Iteration: 2})

	h.mu.Lock()
	n := len(h.conns)
	h.mu.Unlock()
	assert.Equal(t, 0, n)
}
