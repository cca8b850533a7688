package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noticing/internal/db"
	"github.com/noticing/internal/logger"
	"github.com/noticing/internal/models"
	"go.uber.org/zap"
)

// Paths of the views whose cached renderings depend on journal data.
const (
	DashboardPath = "/dashboard"
	TodayPath     = "/today"
)

const (
	recentEntriesLimit   = 7
	dashboardReflections = 12
)

// Invalidator marks cached renderings of a path as stale.
type Invalidator interface {
	Invalidate(path string)
}

type JournalService struct {
	db    *db.DB
	views Invalidator
	log   *zap.Logger
	now   func() time.Time
}

func NewJournalService(database *db.DB, views Invalidator, log *zap.Logger) *JournalService {
	return &JournalService{
		db:    database,
		views: views,
		log:   log,
		now:   time.Now,
	}
}

func (s *JournalService) today() time.Time {
	return models.Day(s.now())
}

// SubmitEntry stores today's answers for userID, replacing any earlier
// submission for the same day.
func (s *JournalService) SubmitEntry(ctx context.Context, userID string, answers models.Answers) (*models.JournalEntry, error) {
	entry := models.JournalEntry{
		UserID:  userID,
		Date:    s.today(),
		Answer1: strings.TrimSpace(answers.Answer1),
		Answer2: strings.TrimSpace(answers.Answer2),
		Answer3: strings.TrimSpace(answers.Answer3),
	}

	query := `
		INSERT INTO entries (user_id, date, answer_1, answer_2, answer_3)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, date) DO UPDATE
		SET answer_1 = EXCLUDED.answer_1,
		    answer_2 = EXCLUDED.answer_2,
		    answer_3 = EXCLUDED.answer_3,
		    updated_at = CURRENT_TIMESTAMP
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowContext(ctx, query,
		entry.UserID,
		entry.Day(),
		entry.Answer1,
		entry.Answer2,
		entry.Answer3,
	).Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert entry: %w", err)
	}

	logger.FromContext(ctx, s.log).Info("journal entry saved",
		zap.String("user_id", userID),
		zap.String("date", entry.Day()),
	)

	s.invalidate(DashboardPath, TodayPath)
	return &entry, nil
}

// TodayEntry returns today's entry for userID, or nil if none was submitted.
func (s *JournalService) TodayEntry(ctx context.Context, userID string) (*models.JournalEntry, error) {
	query := `
		SELECT id, user_id, date, answer_1, answer_2, answer_3, created_at, updated_at
		FROM entries
		WHERE user_id = $1 AND date = $2`

	var entry models.JournalEntry
	err := s.db.QueryRowContext(ctx, query, userID, s.today().Format(models.DateLayout)).Scan(
		&entry.ID, &entry.UserID, &entry.Date,
		&entry.Answer1, &entry.Answer2, &entry.Answer3,
		&entry.CreatedAt, &entry.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get today's entry: %w", err)
	}
	return &entry, nil
}

// RecentEntries returns up to limit of the user's entries, newest first.
func (s *JournalService) RecentEntries(ctx context.Context, userID string, limit int) ([]models.JournalEntry, error) {
	return recentEntries(ctx, s.db, userID, limit)
}

func recentEntries(ctx context.Context, database *db.DB, userID string, limit int) ([]models.JournalEntry, error) {
	query := `
		SELECT id, user_id, date, answer_1, answer_2, answer_3, created_at, updated_at
		FROM entries
		WHERE user_id = $1
		ORDER BY date DESC
		LIMIT $2`

	rows, err := database.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := []models.JournalEntry{}
	for rows.Next() {
		var entry models.JournalEntry
		if err := rows.Scan(
			&entry.ID, &entry.UserID, &entry.Date,
			&entry.Answer1, &entry.Answer2, &entry.Answer3,
			&entry.CreatedAt, &entry.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read entries: %w", err)
	}
	return entries, nil
}

// Reflections returns up to limit of the user's reflections, latest week first.
func (s *JournalService) Reflections(ctx context.Context, userID string, limit int) ([]models.WeeklyReflection, error) {
	query := `
		SELECT id, user_id, week_start, content, created_at
		FROM reflections
		WHERE user_id = $1
		ORDER BY week_start DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reflections: %w", err)
	}
	defer rows.Close()

	reflections := []models.WeeklyReflection{}
	for rows.Next() {
		var r models.WeeklyReflection
		if err := rows.Scan(&r.ID, &r.UserID, &r.WeekStart, &r.Content, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reflection: %w", err)
		}
		reflections = append(reflections, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read reflections: %w", err)
	}
	return reflections, nil
}

// Dashboard gathers the reflections and entries shown on the dashboard.
func (s *JournalService) Dashboard(ctx context.Context, userID string) (*models.Dashboard, error) {
	reflections, err := s.Reflections(ctx, userID, dashboardReflections)
	if err != nil {
		return nil, err
	}

	entries, err := s.RecentEntries(ctx, userID, recentEntriesLimit)
	if err != nil {
		return nil, err
	}

	current, past := SplitReflections(reflections, s.today())
	return &models.Dashboard{
		Current: current,
		Past:    past,
		Entries: entries,
	}, nil
}

// SplitReflections separates this week's reflection from the rest.
// reflections must be ordered latest week first. The latest counts as this
// week's when it starts no earlier than six days before today; only then is
// it left out of past.
func SplitReflections(reflections []models.WeeklyReflection, today time.Time) (*models.WeeklyReflection, []models.WeeklyReflection) {
	if len(reflections) == 0 {
		return nil, []models.WeeklyReflection{}
	}

	currentWeekStart := models.Day(today).AddDate(0, 0, -6)
	latest := reflections[0]
	if models.Day(latest.WeekStart).Before(currentWeekStart) {
		return nil, reflections
	}
	return &latest, reflections[1:]
}

func (s *JournalService) invalidate(paths ...string) {
	if s.views == nil {
		return
	}
	for _, path := range paths {
		s.views.Invalidate(path)
	}
}
