package bridge_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/scenesync/internal/bridge"
	"github.com/cory-johannsen/scenesync/internal/config"
	"github.com/cory-johannsen/scenesync/internal/testutil"
)

// echoHandler is a test SessionHandler that echoes lines back to the client.
type echoHandler struct {
	sessionCount atomic.Int32
}

func (h *echoHandler) HandleSession(_ context.Context, conn *bridge.Conn) error {
	h.sessionCount.Add(1)
	for {
		line, err := conn.ReadLine()
		if err != nil {
			return err
		}
		if line == "quit" {
			_ = conn.WriteLine("bye")
			return nil
		}
		_ = conn.WriteLine("echo: " + line)
	}
}

func testBridgeConfig() config.BridgeConfig {
	return config.BridgeConfig{
		Host:         "127.0.0.1",
		Port:         0,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

func startAcceptor(t *testing.T, handler bridge.SessionHandler) (*bridge.Acceptor, <-chan error) {
	t.Helper()
	acc := bridge.NewAcceptor(testBridgeConfig(), handler, zaptest.NewLogger(t))

	errCh := make(chan error, 1)
	go func() {
		errCh <- acc.ListenAndServe()
	}()

	deadline := time.After(2 * time.Second)
	for {
		if acc.IsRunning() && acc.Addr() != "" {
			return acc, errCh
		}
		select {
		case <-deadline:
			t.Fatal("acceptor did not start in time")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestAcceptorStartAndStop(t *testing.T) {
	handler := &echoHandler{}
	acc, errCh := startAcceptor(t, handler)

	client := testutil.NewLineClient(t, acc.Addr())
	assert.Equal(t, "echo: hello", client.Request("hello"))
	assert.Equal(t, "bye", client.Request("quit"))
	client.Close()

	acc.Stop()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("acceptor did not stop in time")
	}

	assert.Equal(t, int32(1), handler.sessionCount.Load())
	assert.False(t, acc.IsRunning())
}

func TestAcceptorMultipleClients(t *testing.T) {
	handler := &echoHandler{}
	acc, _ := startAcceptor(t, handler)
	defer acc.Stop()

	const numClients = 3
	clients := make([]*testutil.LineClient, numClients)
	for i := range clients {
		clients[i] = testutil.NewLineClient(t, acc.Addr())
	}
	for i, c := range clients {
		assert.Equal(t, fmt.Sprintf("echo: client %d", i), c.Request(fmt.Sprintf("client %d", i)))
	}
	for _, c := range clients {
		assert.Equal(t, "bye", c.Request("quit"))
	}
	assert.Equal(t, int32(numClients), handler.sessionCount.Load())
}

func TestAcceptorStopClosesIdleSessions(t *testing.T) {
	handler := &echoHandler{}
	acc, errCh := startAcceptor(t, handler)

	client := testutil.NewLineClient(t, acc.Addr())
	assert.Equal(t, "echo: hi", client.Request("hi"))

	stopped := make(chan struct{})
	go func() {
		acc.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop blocked on an idle session")
	}
	require.NoError(t, <-errCh)
}

func TestAcceptorStopIsIdempotent(t *testing.T) {
	acc, _ := startAcceptor(t, &echoHandler{})
	acc.Stop()
	assert.NotPanics(t, acc.Stop)
}

func TestSessionHandlerFunc(t *testing.T) {
	acc, _ := startAcceptor(t, bridge.SessionHandlerFunc(func(_ context.Context, conn *bridge.Conn) error {
		return conn.WriteLine("ready")
	}))
	defer acc.Stop()

	client := testutil.NewLineClient(t, acc.Addr())
	assert.Equal(t, "ready", client.ReadLine(2*time.Second))
}
