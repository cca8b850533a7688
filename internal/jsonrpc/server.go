package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/noticing/internal/logger"
	"go.uber.org/zap"
)

// Standard and application error codes.
const (
	CodeParseError      = -32700
	CodeInvalidRequest  = -32600
	CodeMethodNotFound  = -32601
	CodeInvalidParams   = -32602
	CodeServerError     = -32000
	CodeUnauthenticated = -32001
)

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      interface{}     `json:"id"`
}

type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// NewError lets a handler choose the error code sent to the caller.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

type Handler func(ctx context.Context, params json.RawMessage) (interface{}, error)

type Server struct {
	handlers map[string]Handler
	log      *zap.Logger
}

func NewServer(log *zap.Logger) *Server {
	return &Server{
		handlers: make(map[string]Handler),
		log:      log,
	}
}

func (s *Server) RegisterMethod(method string, handler Handler) {
	s.handlers[method] = handler
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, nil, CodeParseError, "Parse error", err.Error())
		return
	}

	if req.JSONRPC != "2.0" {
		s.writeError(w, req.ID, CodeInvalidRequest, "Invalid Request", "JSON-RPC version must be 2.0")
		return
	}

	handler, exists := s.handlers[req.Method]
	if !exists {
		s.writeError(w, req.ID, CodeMethodNotFound, "Method not found", fmt.Sprintf("Method '%s' not found", req.Method))
		return
	}

	result, err := handler(r.Context(), req.Params)
	if err != nil {
		var rpcErr *Error
		if errors.As(err, &rpcErr) {
			s.writeError(w, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
			return
		}
		logger.FromContext(r.Context(), s.log).Error("rpc method failed", zap.String("method", req.Method), zap.Error(err))
		s.writeError(w, req.ID, CodeServerError, "Server error", nil)
		return
	}

	s.writeResult(w, req.ID, result)
}

func (s *Server) writeError(w http.ResponseWriter, id interface{}, code int, message string, data interface{}) {
	resp := Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
