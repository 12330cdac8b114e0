package http

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LumiGrid/internal/config"
)

func TestNewServer(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	s := NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 8080, ReadTimeout: time.Second}, mux, nil)

	assert.Equal(t, "127.0.0.1:8080", s.Addr())
	assert.Equal(t, time.Second, s.srv.ReadTimeout)
	assert.Equal(t, defaultShutdownTimeout, s.shutdownTimeout)
	assert.NotNil(t, s.Handler())
}

func TestServer_ServeAndStop(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})
	s := NewServer(config.ServerConfig{ShutdownTimeout: time.Second}, mux, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	require.NoError(t, s.Stop(context.Background()))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Stop")
	}
}

func TestServer_StopBeforeStart(t *testing.T) {
	t.Parallel()

	s := NewServer(config.ServerConfig{}, http.NewServeMux(), nil)
	assert.NoError(t, s.Stop(context.Background()))
}
