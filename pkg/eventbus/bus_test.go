package eventbus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBusDeliversToWebhook(t *testing.T) {
	received := make(chan Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		received <- ev
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewBus(ctx, srv.URL, nil, 4)
	bus.Emit(ctx, Event{Kind: KindBlobPut, Repository: "library/ubuntu", Digest: "sha256:abc"})

	select {
	case ev := <-received:
		require.Equal(t, KindBlobPut, ev.Kind)
		require.Equal(t, "library/ubuntu", ev.Repository)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for webhook delivery")
	}
}

func TestBusEmitNeverBlocksOnFullBuffer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Built directly rather than via NewBus, so no drain goroutine runs and
	// the one-slot buffer stays full after the first Emit.
	bus := &Bus{events: make(chan Event, 1)}
	bus.Emit(ctx, Event{Kind: KindBlobPut})
	done := make(chan struct{})
	go func() {
		bus.Emit(ctx, Event{Kind: KindBlobPut})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full buffer")
	}
}
