package handlers

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/noticing/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// readEvent reads one SSE frame.
func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var lines []string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			return strings.Join(lines, "\n")
		}
		lines = append(lines, line)
	}
}

func TestEventsHandlerStreamsStaleViews(t *testing.T) {
	broadcaster := events.NewBroadcaster(zaptest.NewLogger(t))
	broadcaster.Start()
	defer broadcaster.Stop()

	srv := httptest.NewServer(EventsHandler(broadcaster))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	assert.True(t, strings.HasPrefix(readEvent(t, reader), "event: connected\ndata: {\"client_id\":"))

	broadcaster.SendEvent(events.EventViewStale, "/dashboard")

	frame := readEvent(t, reader)
	assert.True(t, strings.HasPrefix(frame, "event: view.stale\n"), frame)
	assert.Contains(t, frame, `"path":"/dashboard"`)
}
