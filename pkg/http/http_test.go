package http

import (
	"context"
	"errors"
	gohttp "net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestSend_DecodesJSON(t *testing.T) {
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "catalogsync-test", r.Header.Get("User-Agent"))
		w.Write([]byte(`[{"id":1}]`))
	}))
	defer srv.Close()

	resp, err := NewClient(WithUserAgent("catalogsync-test")).Get(srv.URL).Send()
	require.NoError(t, err)
	assert.True(t, resp.OK())

	var out []map[string]int
	require.NoError(t, resp.JSON(&out))
	assert.Equal(t, 1, out[0]["id"])
}

func TestSend_Non2xxIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		w.WriteHeader(gohttp.StatusServiceUnavailable)
	}))
	defer srv.Close()

	resp, err := NewClient().Get(srv.URL).Send()
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, gohttp.StatusServiceUnavailable, resp.StatusCode)
}

func TestSend_TimeoutWrapsDeadline(t *testing.T) {
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	_, err := NewClient().Get(srv.URL).Timeout(20 * time.Millisecond).Send()
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSend_RetriesTransportFailures(t *testing.T) {
	var calls atomic.Int32
	rt := roundTripFunc(func(r *gohttp.Request) (*gohttp.Response, error) {
		calls.Add(1)
		return nil, errors.New("connection refused")
	})

	_, err := NewClient(WithTransport(rt)).Get("http://catalog.invalid").Retry(3, time.Millisecond).Send()
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSend_LimiterHonoursContext(t *testing.T) {
	lim := rate.NewLimiter(rate.Every(time.Hour), 1)
	lim.Allow() // drain the only token

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewClient(WithLimiter(lim)).Get("http://catalog.invalid").WithContext(ctx).Send()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

type roundTripFunc func(*gohttp.Request) (*gohttp.Response, error)

func (f roundTripFunc) RoundTrip(r *gohttp.Request) (*gohttp.Response, error) { return f(r) }
