package models

import (
	"time"
)

// DateLayout is the calendar-day format used for entry dates and week starts.
const DateLayout = "2006-01-02"

// Answers are the three daily prompts, in form order.
type Answers struct {
	Answer1 string `json:"answer_1"`
	Answer2 string `json:"answer_2"`
	Answer3 string `json:"answer_3"`
}

type JournalEntry struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Date      time.Time `json:"date" db:"date"`
	Answer1   string    `json:"answer_1" db:"answer_1"`
	Answer2   string    `json:"answer_2" db:"answer_2"`
	Answer3   string    `json:"answer_3" db:"answer_3"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Day returns the entry date formatted as YYYY-MM-DD.
func (e JournalEntry) Day() string {
	return e.Date.Format(DateLayout)
}

type WeeklyReflection struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	WeekStart time.Time `json:"week_start" db:"week_start"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// User is the identity reported by the identity provider.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Dashboard is everything the dashboard page shows for one user.
type Dashboard struct {
	Current *WeeklyReflection  `json:"current,omitempty"`
	Past    []WeeklyReflection `json:"past"`
	Entries []JournalEntry     `json:"entries"`
}

// Day truncates t to a UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
