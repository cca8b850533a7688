package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/noticing/internal/textgen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeGenerator struct {
	text     string
	err      error
	requests []textgen.Request
}

func (g *fakeGenerator) Generate(ctx context.Context, req textgen.Request) (string, error) {
	g.requests = append(g.requests, req)
	return g.text, g.err
}

const (
	recentEntriesQuery = `SELECT id, user_id, date(.*)FROM entries(.*)ORDER BY date DESC(.*)LIMIT \$2`
	existsQuery        = `SELECT EXISTS \(SELECT 1 FROM reflections WHERE user_id = \$1 AND week_start = \$2\)`
)

var insertReflectionQuery = `INSERT INTO reflections(.*)` + regexp.QuoteMeta(`ON CONFLICT (user_id, week_start) DO NOTHING`)

func newReflectionService(t *testing.T, gen textgen.Generator) (*ReflectionService, sqlmock.Sqlmock, *recordingViews) {
	database, mock := setupMockDB(t)
	t.Cleanup(func() { database.Close() })

	views := &recordingViews{}
	return NewReflectionService(database, gen, views, zaptest.NewLogger(t)), mock, views
}

// threeEntries returns rows the way the store does: newest first.
func threeEntries() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(entryColumns).
		AddRow("e3", "user-1", day("2024-01-03"), "third", "", "", now, now).
		AddRow("e2", "user-1", day("2024-01-02"), "second", "", "", now, now).
		AddRow("e1", "user-1", day("2024-01-01"), "first", "", "", now, now)
}

func TestGenerateStoresReflection(t *testing.T) {
	gen := &fakeGenerator{text: "  A week of rain and small decisions.  "}
	service, mock, views := newReflectionService(t, gen)

	mock.ExpectQuery(recentEntriesQuery).WithArgs("user-1", 7).WillReturnRows(threeEntries())
	mock.ExpectQuery(existsQuery).WithArgs("user-1", "2024-01-01").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(insertReflectionQuery).
		WithArgs("user-1", "2024-01-01", "A week of rain and small decisions.").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("refl-1", time.Now()))

	outcome, err := service.Generate(context.Background(), "user-1")
	require.NoError(t, err)
	require.True(t, outcome.Generated())
	assert.Equal(t, "generated", outcome.Label())
	assert.Equal(t, "refl-1", outcome.Reflection.ID)
	assert.Equal(t, "2024-01-01", outcome.Reflection.WeekStart.Format("2006-01-02"))
	assert.Equal(t, []string{DashboardPath}, views.paths)

	require.Len(t, gen.requests, 1)
	req := gen.requests[0]
	assert.Equal(t, SystemPrompt, req.System)
	assert.Equal(t, ReflectionMaxTokens, req.MaxTokens)
	assert.Equal(t, 3, strings.Count(req.User, "Entry "))

	first := strings.Index(req.User, "Entry 1 (2024-01-01):")
	second := strings.Index(req.User, "Entry 2 (2024-01-02):")
	third := strings.Index(req.User, "Entry 3 (2024-01-03):")
	assert.True(t, first > 0 && first < second && second < third, req.User)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateTrimsLongReflections(t *testing.T) {
	gen := &fakeGenerator{text: strings.Repeat("word ", 300)}
	service, mock, _ := newReflectionService(t, gen)

	mock.ExpectQuery(recentEntriesQuery).WithArgs("user-1", 7).WillReturnRows(threeEntries())
	mock.ExpectQuery(existsQuery).WithArgs("user-1", "2024-01-01").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(insertReflectionQuery).
		WithArgs("user-1", "2024-01-01", strings.TrimSpace(strings.Repeat("word ", 250))).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("refl-1", time.Now()))

	outcome, err := service.Generate(context.Background(), "user-1")
	require.NoError(t, err)
	require.True(t, outcome.Generated())
	assert.Len(t, strings.Fields(outcome.Reflection.Content), MaxReflectionWords)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateDisabledWithoutGenerator(t *testing.T) {
	service, mock, views := newReflectionService(t, nil)

	outcome, err := service.Generate(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, SkipGenerationDisabled, outcome.Reason)
	assert.False(t, outcome.Generated())
	assert.Empty(t, views.paths)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateSkipsWithoutEntries(t *testing.T) {
	gen := &fakeGenerator{text: "unused"}
	service, mock, views := newReflectionService(t, gen)

	mock.ExpectQuery(recentEntriesQuery).WithArgs("user-1", 7).WillReturnRows(sqlmock.NewRows(entryColumns))

	outcome, err := service.Generate(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, SkipNoEntries, outcome.Reason)
	assert.Empty(t, gen.requests)
	assert.Empty(t, views.paths)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateSkipsExistingWeek(t *testing.T) {
	gen := &fakeGenerator{text: "unused"}
	service, mock, _ := newReflectionService(t, gen)

	mock.ExpectQuery(recentEntriesQuery).WithArgs("user-1", 7).WillReturnRows(threeEntries())
	mock.ExpectQuery(existsQuery).WithArgs("user-1", "2024-01-01").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	outcome, err := service.Generate(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, SkipAlreadyExists, outcome.Reason)
	assert.Empty(t, gen.requests)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateLosesInsertRace(t *testing.T) {
	gen := &fakeGenerator{text: "A reflection."}
	service, mock, views := newReflectionService(t, gen)

	mock.ExpectQuery(recentEntriesQuery).WithArgs("user-1", 7).WillReturnRows(threeEntries())
	mock.ExpectQuery(existsQuery).WithArgs("user-1", "2024-01-01").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(insertReflectionQuery).
		WithArgs("user-1", "2024-01-01", "A reflection.").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))

	outcome, err := service.Generate(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, SkipAlreadyExists, outcome.Reason)
	assert.Empty(t, views.paths)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateFailuresStoreNothing(t *testing.T) {
	tests := []struct {
		name   string
		gen    *fakeGenerator
		reason SkipReason
	}{
		{"service unreachable", &fakeGenerator{err: errors.New("dial tcp: connection refused")}, SkipGenerationFailed},
		{"empty response", &fakeGenerator{err: textgen.ErrEmptyResponse}, SkipEmptyResponse},
		{"whitespace text", &fakeGenerator{text: " \n "}, SkipEmptyResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, mock, views := newReflectionService(t, tt.gen)

			mock.ExpectQuery(recentEntriesQuery).WithArgs("user-1", 7).WillReturnRows(threeEntries())
			mock.ExpectQuery(existsQuery).WithArgs("user-1", "2024-01-01").
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

			outcome, err := service.Generate(context.Background(), "user-1")
			require.NoError(t, err)
			assert.Equal(t, tt.reason, outcome.Reason)
			assert.Len(t, tt.gen.requests, 1)
			assert.Empty(t, views.paths)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGenerateReturnsStoreErrors(t *testing.T) {
	gen := &fakeGenerator{text: "unused"}
	service, mock, _ := newReflectionService(t, gen)

	mock.ExpectQuery(recentEntriesQuery).WithArgs("user-1", 7).WillReturnError(errors.New("connection reset"))

	_, err := service.Generate(context.Background(), "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query entries")
	assert.Empty(t, gen.requests)
	assert.NoError(t, mock.ExpectationsWereMet())
}
