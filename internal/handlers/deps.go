package handlers

import (
	"context"

	"github.com/noticing/internal/auth"
	"github.com/noticing/internal/models"
	"github.com/noticing/internal/service"
	"golang.org/x/oauth2"
)

// Journal is the entry and dashboard side of the service layer.
type Journal interface {
	SubmitEntry(ctx context.Context, userID string, answers models.Answers) (*models.JournalEntry, error)
	TodayEntry(ctx context.Context, userID string) (*models.JournalEntry, error)
	Dashboard(ctx context.Context, userID string) (*models.Dashboard, error)
}

// Reflections generates weekly reflections.
type Reflections interface {
	Generate(ctx context.Context, userID string) (service.Outcome, error)
}

// Identity is the identity provider as seen by the sign-in pages.
type Identity interface {
	SignIn(ctx context.Context, email, password string) (*oauth2.Token, error)
	SignUp(ctx context.Context, email, password, redirectTo string) (*auth.SignUpResult, error)
	Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error)
	SignOut(ctx context.Context, accessToken string) error
}
