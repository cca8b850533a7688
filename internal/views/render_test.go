package views

import (
	"testing"
	"time"

	"github.com/noticing/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderDashboard(t *testing.T) {
	week := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	page, err := RenderDashboard(DashboardPage{
		User: models.User{ID: "u1", Email: "me@example.com"},
		Dashboard: &models.Dashboard{
			Current: &models.WeeklyReflection{WeekStart: week, Content: "A quiet week."},
			Entries: []models.JournalEntry{{Date: week, Answer1: "rain"}},
		},
	})
	require.NoError(t, err)

	html := string(page)
	assert.Contains(t, html, "me@example.com")
	assert.Contains(t, html, "Week of 2024-01-01")
	assert.Contains(t, html, "A quiet week.")
	assert.Contains(t, html, "No past reflections yet.")
	assert.Contains(t, html, "<strong>Stood out:</strong> rain")
	assert.Contains(t, html, "<strong>Subtly meaningful:</strong> —")
}

func TestRenderDashboardEmpty(t *testing.T) {
	page, err := RenderDashboard(DashboardPage{Dashboard: &models.Dashboard{}})
	require.NoError(t, err)
	assert.Contains(t, string(page), "No reflection yet this week.")
	assert.Contains(t, string(page), "No entries yet.")
}

func TestRenderLoginEscapesMessage(t *testing.T) {
	page, err := RenderLogin(LoginPage{Message: "<b>Invalid login credentials</b>"})
	require.NoError(t, err)
	assert.Contains(t, string(page), "&lt;b&gt;Invalid login credentials&lt;/b&gt;")
}

func TestRenderTodayPrefills(t *testing.T) {
	page, err := RenderToday(TodayPage{Answers: models.Answers{Answer2: "the light"}})
	require.NoError(t, err)
	assert.Contains(t, string(page), ">the light</textarea>")
}

func TestRenderedPagesSubscribeToStaleEvents(t *testing.T) {
	dashboard, err := RenderDashboard(DashboardPage{Dashboard: &models.Dashboard{}})
	require.NoError(t, err)
	today, err := RenderToday(TodayPage{})
	require.NoError(t, err)
	login, err := RenderLogin(LoginPage{})
	require.NoError(t, err)

	for _, page := range [][]byte{dashboard, today} {
		assert.Contains(t, string(page), `new EventSource("/api/events")`)
		assert.Contains(t, string(page), `addEventListener("view.stale"`)
	}
	assert.NotContains(t, string(login), "EventSource")
}
