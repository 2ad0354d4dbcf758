package resolver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"example.com/auctionhouse/config"
)

func newTestClient(baseURL string, maxAttempts int) *Client {
	return NewClient(config.ResolverConfig{
		BaseURL:     baseURL,
		Timeout:     time.Second,
		MaxAttempts: maxAttempts,
		Backoff:     time.Millisecond,
	})
}

func TestResolveReturnsSnapshot(t *testing.T) {
	auctionID := uuid.New()
	end := time.Now().UTC().Add(time.Hour).Truncate(time.Second)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/internal/auctions/"+auctionID.String(), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":           auctionID,
			"seller":       "alice",
			"reservePrice": 100,
			"auctionEnd":   end,
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)

	snapshot, err := client.Resolve(context.Background(), auctionID)

	require.NoError(t, err)
	require.Equal(t, auctionID, snapshot.ID)
	require.Equal(t, "alice", snapshot.Seller)
	require.Equal(t, 100, snapshot.ReservePrice)
	require.True(t, snapshot.AuctionEnd.Equal(end))
}

func TestResolveNotFoundIsNotRetried(t *testing.T) {
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)

	_, err := client.Resolve(context.Background(), uuid.New())

	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestResolveRetriesTransientFailures(t *testing.T) {
	var calls int32
	auctionID := uuid.New()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":           auctionID,
			"seller":       "alice",
			"reservePrice": 100,
			"auctionEnd":   time.Now().UTC().Add(time.Hour),
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)

	snapshot, err := client.Resolve(context.Background(), auctionID)

	require.NoError(t, err)
	require.Equal(t, auctionID, snapshot.ID)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestResolveExhaustedRetriesSurfaceUnavailable(t *testing.T) {
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)

	_, err := client.Resolve(context.Background(), uuid.New())

	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestResolveUnreachableServer(t *testing.T) {
	// A closed port fails every attempt
	client := newTestClient("http://127.0.0.1:1", 2)

	_, err := client.Resolve(context.Background(), uuid.New())

	require.ErrorIs(t, err, ErrUnavailable)
}
