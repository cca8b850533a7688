package events

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestBroadcasterDeliversEvents(t *testing.T) {
	b := NewBroadcaster(zaptest.NewLogger(t))
	b.Start()
	defer b.Stop()

	client := b.RegisterClient("client-1")
	b.SendEvent(EventViewStale, "/dashboard")

	select {
	case event := <-client.Events:
		assert.Equal(t, EventViewStale, event.Type)
		assert.Equal(t, "/dashboard", event.Path)
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}

	b.UnregisterClient(client)
	_, open := <-client.Events
	assert.False(t, open)
}

func TestBroadcasterStopClosesClients(t *testing.T) {
	b := NewBroadcaster(zaptest.NewLogger(t))
	b.Start()

	client := b.RegisterClient("client-1")
	b.Stop()

	select {
	case _, open := <-client.Events:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("client channel was not closed")
	}
}

func TestFormatSSE(t *testing.T) {
	out, err := FormatSSE(&Event{Type: EventViewStale, Path: "/today"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "event: view.stale\ndata: {"))
	assert.Contains(t, out, `"path":"/today"`)
	assert.True(t, strings.HasSuffix(out, "\n\n"))
}
