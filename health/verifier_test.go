package health

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/atomic"
)

func newTestVerifier(attempts int) *Verifier {
	return NewVerifier(Config{
		Attempts:       attempts,
		Interval:       5 * time.Millisecond,
		RequestTimeout: time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCheckPassesOnHealthyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer srv.Close()

	assert.True(t, newTestVerifier(2).Check(context.Background(), srv.URL+"/health"))
}

func TestCheckRetriesThenFailsOnUnhealthyBody(t *testing.T) {
	var polls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls.Inc()
		w.Write([]byte(`{"status":"unhealthy"}`))
	}))
	defer srv.Close()

	ok := newTestVerifier(2).Check(context.Background(), srv.URL+"/health")
	assert.False(t, ok)
	assert.Equal(t, int64(2), polls.Load(), "verifier re-checks once after the first failed poll")
}

func TestCheckRecoversWithinAttempts(t *testing.T) {
	var polls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if polls.Inc() < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("healthy"))
	}))
	defer srv.Close()

	assert.True(t, newTestVerifier(3).Check(context.Background(), srv.URL+"/health"))
	assert.Equal(t, int64(2), polls.Load())
}

func TestCheckFailsOnNon200EvenWithToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("healthy"))
	}))
	defer srv.Close()

	assert.False(t, newTestVerifier(1).Check(context.Background(), srv.URL+"/health"))
}

func TestContainsTokenWholeWordOnly(t *testing.T) {
	assert.True(t, containsToken("healthy"))
	assert.True(t, containsToken(`{"status":"healthy"}`))
	assert.True(t, containsToken("status: healthy\n"))
	assert.False(t, containsToken(`{"status":"unhealthy"}`))
	assert.False(t, containsToken("healthyish"))
	assert.False(t, containsToken(""))
}

func TestCheckFailsFastOnUnreachableEndpoint(t *testing.T) {
	assert.False(t, newTestVerifier(1).Check(context.Background(), "http://127.0.0.1:1/health"))
}
