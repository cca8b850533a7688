package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/noticing/internal/auth"
	"github.com/noticing/internal/jsonrpc"
	"github.com/noticing/internal/models"
)

// JournalHandlers exposes the journal over JSON-RPC.
type JournalHandlers struct {
	journal     Journal
	reflections Reflections
}

func NewJournalHandlers(journal Journal, reflections Reflections) *JournalHandlers {
	return &JournalHandlers{journal: journal, reflections: reflections}
}

// Register adds the journal methods to rpc.
func (h *JournalHandlers) Register(rpc *jsonrpc.Server) {
	rpc.RegisterMethod("entry.submit", h.SubmitEntry)
	rpc.RegisterMethod("entry.today", h.TodayEntry)
	rpc.RegisterMethod("reflection.generate", h.GenerateReflection)
	rpc.RegisterMethod("dashboard.get", h.GetDashboard)
}

func currentUser(ctx context.Context) (*models.User, error) {
	user, ok := auth.UserFromContext(ctx)
	if !ok {
		return nil, jsonrpc.NewError(jsonrpc.CodeUnauthenticated, "Authentication required")
	}
	return user, nil
}

func (h *JournalHandlers) SubmitEntry(ctx context.Context, params json.RawMessage) (interface{}, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	var p models.Answers
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, fmt.Sprintf("invalid parameters: %v", err))
		}
	}

	return h.journal.SubmitEntry(ctx, user.ID, p)
}

func (h *JournalHandlers) TodayEntry(ctx context.Context, params json.RawMessage) (interface{}, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	return h.journal.TodayEntry(ctx, user.ID)
}

func (h *JournalHandlers) GenerateReflection(ctx context.Context, params json.RawMessage) (interface{}, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	return h.reflections.Generate(ctx, user.ID)
}

func (h *JournalHandlers) GetDashboard(ctx context.Context, params json.RawMessage) (interface{}, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	return h.journal.Dashboard(ctx, user.ID)
}
