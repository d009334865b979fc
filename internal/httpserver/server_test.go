package httpserver

import (
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"
)

type testLogger struct {
	mu   sync.Mutex
	logs []string
}

func (l *testLogger) Printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = append(l.logs, format)
}

func TestNewAppliesDefaults(t *testing.T) {
	srv, err := New(Config{Port: ":8080"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if srv.httpServer == nil {
		t.Fatalf("expected underlying http server to be configured")
	}
	if srv.httpServer.Handler == nil {
		t.Fatalf("expected default handler to be applied")
	}
	if srv.httpServer.WriteTimeout != defaultWriteTimeout {
		t.Fatalf("expected default write timeout, got %s", srv.httpServer.WriteTimeout)
	}
	if srv.Addr != defaultAddr {
		t.Fatalf("expected default addr, got %s", srv.Addr)
	}
}

func TestNewRequiresPort(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error when port missing")
	}
}

func waitForListener(t *testing.T, srv *Server) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for srv.ListenerAddr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("server failed to start")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return "http://" + srv.ListenerAddr().String()
}

func TestListenAndServeWithDefaultHandler(t *testing.T) {
	logger := &testLogger{}
	srv, err := New(Config{Port: ":0", Logger: logger})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe() }()

	url := waitForListener(t, srv)
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("failed to query server: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Fatalf("unexpected body %q", string(body))
	}

	if err := srv.Close(); err != nil {
		t.Fatalf("close server: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("listen returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestShutdownWaitsForInFlightRequests(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		_, _ = w.Write([]byte("done"))
	})
	srv, err := New(Config{Port: ":0", Logger: &testLogger{}, Handler: handler})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe() }()
	url := waitForListener(t, srv)

	respCh := make(chan string, 1)
	go func() {
		resp, err := http.Get(url)
		if err != nil {
			respCh <- "error: " + err.Error()
			return
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		respCh <- string(body)
	}()
	<-started

	shutdownErr := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		shutdownErr <- srv.Shutdown(ctx)
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)

	if got := <-respCh; got != "done" {
		t.Fatalf("in-flight request should complete, got %q", got)
	}
	if err := <-shutdownErr; err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("listen returned error: %v", err)
	}
}
