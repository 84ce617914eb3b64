package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProbeCachesResult(t *testing.T) {
	var (
		hits atomic.Int32
		ua   atomic.Value
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		ua.Store(r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewChecker([]Target{{Name: "embed", URL: srv.URL}}, time.Minute, time.Second)
	require.True(t, c.Healthy(context.Background(), "embed"))
	require.Zero(t, hits.Load())

	statuses := c.Status(context.Background())
	require.Len(t, statuses, 1)
	require.True(t, statuses[0].Healthy)
	require.Equal(t, http.StatusOK, statuses[0].StatusCode)
	require.Equal(t, int32(1), hits.Load())
	require.Equal(t, userAgent, ua.Load())

	c.Status(context.Background())
	require.Equal(t, int32(1), hits.Load())
}

func TestProbeMarksServerErrorUnhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewChecker([]Target{{Name: "embed", URL: srv.URL}}, time.Minute, time.Second)
	st := c.ProbeAll(context.Background())
	require.False(t, st[0].Healthy)
	require.Equal(t, http.StatusServiceUnavailable, st[0].StatusCode)
	require.False(t, c.Healthy(context.Background(), "embed"))
}

func TestProbeFallsBackToHealthEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewChecker([]Target{{Name: "embed", URL: srv.URL}}, time.Minute, 50*time.Millisecond)
	st := c.Probe(context.Background(), c.Targets()[0])
	require.True(t, st.Healthy)
}

func TestUnreachableTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewChecker([]Target{{Name: "gone", URL: url}}, time.Minute, 200*time.Millisecond)
	st := c.Probe(context.Background(), c.Targets()[0])
	require.False(t, st.Healthy)
	require.NotEmpty(t, st.Error)
	require.False(t, c.Healthy(context.Background(), "gone"))
}

func TestNewCheckerSkipsInvalidTargets(t *testing.T) {
	c := NewChecker([]Target{{Name: "a", URL: "http://x"}, {Name: "", URL: "http://y"}, {Name: "a", URL: "http://z"}}, 0, 0)
	require.Len(t, c.Targets(), 1)
	require.True(t, c.Healthy(context.Background(), "unknown"))
}
