package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/noticing/internal/db"
	"github.com/noticing/internal/logger"
	"github.com/noticing/internal/metrics"
	"github.com/noticing/internal/models"
	"github.com/noticing/internal/textgen"
	"go.uber.org/zap"
)

// ReflectionMaxTokens bounds the model's output length.
const ReflectionMaxTokens = 400

// SkipReason says why a generation attempt stored nothing.
type SkipReason string

const (
	SkipGenerationDisabled SkipReason = "generation_disabled"
	SkipNoEntries          SkipReason = "no_entries"
	SkipAlreadyExists      SkipReason = "already_exists"
	SkipGenerationFailed   SkipReason = "generation_failed"
	SkipEmptyResponse      SkipReason = "empty_response"
)

// Outcome is the result of one generation attempt: either a stored
// reflection or the reason nothing was stored.
type Outcome struct {
	Reflection *models.WeeklyReflection `json:"reflection,omitempty"`
	Reason     SkipReason               `json:"reason,omitempty"`
}

func generated(r *models.WeeklyReflection) Outcome { return Outcome{Reflection: r} }
func skipped(reason SkipReason) Outcome { return Outcome{Reason: reason} }

// Generated reports whether a new reflection was stored.
func (o Outcome) Generated() bool {
	return o.Reflection != nil
}

// Label names the outcome for logs and metrics.
func (o Outcome) Label() string {
	if o.Generated() {
		return "generated"
	}
	return string(o.Reason)
}

type ReflectionService struct {
	db        *db.DB
	generator textgen.Generator
	views     Invalidator
	log       *zap.Logger
}

// NewReflectionService creates the weekly reflection generator. A nil
// generator disables generation.
func NewReflectionService(database *db.DB, generator textgen.Generator, views Invalidator, log *zap.Logger) *ReflectionService {
	return &ReflectionService{
		db:        database,
		generator: generator,
		views:     views,
		log:       log,
	}
}

// Generate writes at most one reflection for userID's latest entries. Every
// unmet precondition and generation failure is reported as a skipped
// Outcome; only store failures return an error.
func (s *ReflectionService) Generate(ctx context.Context, userID string) (Outcome, error) {
	outcome, err := s.generate(ctx, userID)

	log := logger.FromContext(ctx, s.log).With(zap.String("user_id", userID))
	if err != nil {
		metrics.RecordReflection("error")
		log.Error("weekly reflection failed", zap.Error(err))
		return Outcome{}, err
	}

	metrics.RecordReflection(outcome.Label())
	if outcome.Generated() {
		log.Info("weekly reflection generated",
			zap.String("reflection_id", outcome.Reflection.ID),
			zap.String("week_start", outcome.Reflection.WeekStart.Format(models.DateLayout)),
		)
	} else {
		log.Info("weekly reflection skipped", zap.String("reason", string(outcome.Reason)))
	}
	return outcome, nil
}

func (s *ReflectionService) generate(ctx context.Context, userID string) (Outcome, error) {
	if s.generator == nil {
		return skipped(SkipGenerationDisabled), nil
	}

	entries, err := recentEntries(ctx, s.db, userID, recentEntriesLimit)
	if err != nil {
		return Outcome{}, err
	}
	if len(entries) == 0 {
		return skipped(SkipNoEntries), nil
	}

	slices.Reverse(entries)
	weekStart := models.Day(entries[0].Date)

	exists, err := s.reflectionExists(ctx, userID, weekStart)
	if err != nil {
		return Outcome{}, err
	}
	if exists {
		return skipped(SkipAlreadyExists), nil
	}

	start := time.Now()
	text, err := s.generator.Generate(ctx, textgen.Request{
		System:    SystemPrompt,
		User:      ReflectionPrompt(entries),
		MaxTokens: ReflectionMaxTokens,
	})
	metrics.ObserveGeneration(time.Since(start))
	if errors.Is(err, textgen.ErrEmptyResponse) {
		return skipped(SkipEmptyResponse), nil
	}
	if err != nil {
		logger.FromContext(ctx, s.log).Warn("text generation failed", zap.String("user_id", userID), zap.Error(err))
		return skipped(SkipGenerationFailed), nil
	}

	content := TrimToMaxWords(text, MaxReflectionWords)
	if content == "" {
		return skipped(SkipEmptyResponse), nil
	}

	reflection, err := s.insertIfAbsent(ctx, userID, weekStart, content)
	if err != nil {
		return Outcome{}, err
	}
	if reflection == nil {
		return skipped(SkipAlreadyExists), nil
	}

	if s.views != nil {
		s.views.Invalidate(DashboardPath)
	}
	return generated(reflection), nil
}

func (s *ReflectionService) reflectionExists(ctx context.Context, userID string, weekStart time.Time) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM reflections WHERE user_id = $1 AND week_start = $2)`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, userID, weekStart.Format(models.DateLayout)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check existing reflection: %w", err)
	}
	return exists, nil
}

// insertIfAbsent stores a reflection unless one already exists for the
// week. It returns nil when another writer got there first.
func (s *ReflectionService) insertIfAbsent(ctx context.Context, userID string, weekStart time.Time, content string) (*models.WeeklyReflection, error) {
	query := `
		INSERT INTO reflections (user_id, week_start, content)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, week_start) DO NOTHING
		RETURNING id, created_at`

	reflection := &models.WeeklyReflection{
		UserID:    userID,
		WeekStart: weekStart,
		Content:   content,
	}
	err := s.db.QueryRowContext(ctx, query, userID, weekStart.Format(models.DateLayout), content).
		Scan(&reflection.ID, &reflection.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert reflection: %w", err)
	}
	return reflection, nil
}
