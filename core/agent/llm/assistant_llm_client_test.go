package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"assistant_server/pkg/apperr"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	if err == nil {
		t.Fatal("NewClient() accepted an empty API key")
	}
	if !apperr.IsConfigError(err) {
		t.Errorf("NewClient() error = %v, want config error", err)
	}
}

func TestClientRequestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := NewClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL, TimeoutSec: 1})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	start := time.Now()
	_, err = c.Complete(context.Background(), "hello", 5, 0)
	if err == nil {
		t.Fatal("Complete() returned nil against a stalled provider")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Complete() took %v, want the configured 1s timeout to cut it off", elapsed)
	}
}
