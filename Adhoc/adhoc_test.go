package Adhoc

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registryConfig(t *testing.T, url string, interval time.Duration) RegServerConfig {
	t.Helper()
	host, portStr, err := net.SplitHostPort(url[len("http://"):])
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return RegServerConfig{Addr: host, Port: port, Interval: interval}
}

func TestSendAliveMessage(t *testing.T) {
	got := make(chan RegisterRequest, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/register", r.URL.Path)
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			got <- req
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(RegisterResponse{Id: req.Id, Success: true})
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	self := Registration{ID: "node-1", Type: "object-detector", Name: "door", IP: "10.0.0.5", Port: 50051}
	go SendAliveMessage(ctx, &wg, registryConfig(t, srv.URL, 10*time.Millisecond), self)

	for i := 0; i < 2; i++ {
		select {
		case req := <-got:
			assert.Equal(t, "node-1", req.Id)
			assert.Equal(t, "object-detector", req.Type)
			assert.Equal(t, "door", req.Name)
			assert.Equal(t, 50051, req.Port)
			assert.NotZero(t, req.TimeStamp)
		case <-time.After(2 * time.Second):
			t.Fatalf("heartbeat %d not received", i)
		}
	}
	cancel()
	wg.Wait()
}

func TestSendAliveMessage_ServerErrorsAreNotFatal(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go SendAliveMessage(ctx, &wg, registryConfig(t, srv.URL, 10*time.Millisecond), Registration{ID: "x"})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 3
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	wg.Wait()
}

func TestRegServerConfig_URL(t *testing.T) {
	reg := RegServerConfig{Addr: "registry.local", Port: 8000}
	assert.Equal(t, "http://registry.local:8000/api/register", reg.URL())
}
