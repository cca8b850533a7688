package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/noticing/internal/auth"
	"github.com/noticing/internal/logger"
	"github.com/noticing/internal/models"
	"github.com/noticing/internal/service"
	"github.com/noticing/internal/views"
	"go.uber.org/zap"
)

const (
	confirmEmailMessage = "Check your email to confirm your account."
	providerDownMessage = "The sign-in service is unavailable. Please try again."
)

// WebHandlers serves the HTML pages and form actions.
type WebHandlers struct {
	journal     Journal
	reflections Reflections
	identity    Identity
	cookies     auth.Cookies
	cache       *views.Cache
	publicURL   string
	log         *zap.Logger
	now         func() time.Time
}

func NewWebHandlers(journal Journal, reflections Reflections, identity Identity, cookies auth.Cookies, cache *views.Cache, publicURL string, log *zap.Logger) *WebHandlers {
	return &WebHandlers{
		journal:     journal,
		reflections: reflections,
		identity:    identity,
		cookies:     cookies,
		cache:       cache,
		publicURL:   strings.TrimRight(publicURL, "/"),
		log:         log,
		now:         time.Now,
	}
}

// Register mounts the pages on router. Pages that need a user redirect to
// /login without one.
func (h *WebHandlers) Register(router *mux.Router) {
	router.Handle("/", http.RedirectHandler(service.DashboardPath, http.StatusSeeOther)).Methods("GET")
	router.HandleFunc("/login", h.LoginPage).Methods("GET")
	router.HandleFunc("/login", h.SignIn).Methods("POST")
	router.HandleFunc("/signup", h.SignUp).Methods("POST")
	router.HandleFunc("/signout", h.SignOut).Methods("POST")
	router.HandleFunc("/auth/callback", h.Callback).Methods("GET")

	router.Handle(service.TodayPath, auth.RequireUser(http.HandlerFunc(h.TodayPage))).Methods("GET")
	router.Handle(service.TodayPath, auth.RequireUser(http.HandlerFunc(h.SubmitEntry))).Methods("POST")
	router.Handle(service.DashboardPath, auth.RequireUser(http.HandlerFunc(h.DashboardPage))).Methods("GET")
	router.Handle("/reflections/generate", auth.RequireUser(http.HandlerFunc(h.GenerateReflection))).Methods("POST")
}

func (h *WebHandlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserFromContext(r.Context()); ok {
		http.Redirect(w, r, service.DashboardPath, http.StatusSeeOther)
		return
	}
	h.renderLogin(w, r, views.LoginPage{})
}

func (h *WebHandlers) SignIn(w http.ResponseWriter, r *http.Request) {
	email, password := strings.TrimSpace(r.PostFormValue("email")), r.PostFormValue("password")
	if email == "" || password == "" {
		h.renderLogin(w, r, views.LoginPage{Email: email, Message: "Email and password are required."})
		return
	}

	tok, err := h.identity.SignIn(r.Context(), email, password)
	if err != nil {
		h.renderLogin(w, r, views.LoginPage{Email: email, Message: h.providerMessage(r, err)})
		return
	}

	h.cookies.WriteSession(w, tok)
	http.Redirect(w, r, service.DashboardPath, http.StatusSeeOther)
}

func (h *WebHandlers) SignUp(w http.ResponseWriter, r *http.Request) {
	email, password := strings.TrimSpace(r.PostFormValue("email")), r.PostFormValue("password")
	if email == "" || password == "" {
		h.renderLogin(w, r, views.LoginPage{Email: email, Message: "Email and password are required."})
		return
	}

	result, err := h.identity.SignUp(r.Context(), email, password, h.publicURL+"/auth/callback")
	if err != nil {
		h.renderLogin(w, r, views.LoginPage{Email: email, Message: h.providerMessage(r, err)})
		return
	}

	if result.Session != nil {
		h.cookies.WriteSession(w, result.Session)
		http.Redirect(w, r, service.DashboardPath, http.StatusSeeOther)
		return
	}

	h.cookies.WriteVerifier(w, result.Verifier)
	h.renderLogin(w, r, views.LoginPage{Email: email, Message: confirmEmailMessage})
}

func (h *WebHandlers) SignOut(w http.ResponseWriter, r *http.Request) {
	if tok, ok := h.cookies.ReadSession(r); ok && tok.AccessToken != "" {
		if err := h.identity.SignOut(r.Context(), tok.AccessToken); err != nil {
			logger.FromContext(r.Context(), h.log).Warn("provider sign out failed", zap.Error(err))
		}
	}
	h.cookies.ClearSession(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// Callback completes the provider's authorization-code redirect. It always
// lands on the dashboard; without a usable code the dashboard sends the
// visitor on to sign in.
func (h *WebHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	if code := r.URL.Query().Get("code"); code != "" {
		verifier := h.cookies.TakeVerifier(w, r)
		tok, err := h.identity.Exchange(r.Context(), code, verifier)
		if err != nil {
			logger.FromContext(r.Context(), h.log).Warn("code exchange failed", zap.Error(err))
		} else {
			h.cookies.WriteSession(w, tok)
		}
	}
	http.Redirect(w, r, service.DashboardPath, http.StatusSeeOther)
}

func (h *WebHandlers) TodayPage(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	key := h.cacheKey(user)

	page, gen, ok := h.cache.Get(service.TodayPath, key)
	if ok {
		writeHTML(w, page)
		return
	}

	entry, err := h.journal.TodayEntry(r.Context(), user.ID)
	if err != nil {
		h.serverError(w, r, "failed to load today's entry", err)
		return
	}

	var data views.TodayPage
	if entry != nil {
		data.Answers = models.Answers{Answer1: entry.Answer1, Answer2: entry.Answer2, Answer3: entry.Answer3}
	}

	page, err = views.RenderToday(data)
	if err != nil {
		h.serverError(w, r, "failed to render today page", err)
		return
	}
	h.cache.Put(service.TodayPath, key, gen, page)
	writeHTML(w, page)
}

func (h *WebHandlers) SubmitEntry(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	answers := models.Answers{
		Answer1: r.PostFormValue("answer_1"),
		Answer2: r.PostFormValue("answer_2"),
		Answer3: r.PostFormValue("answer_3"),
	}
	if _, err := h.journal.SubmitEntry(r.Context(), user.ID, answers); err != nil {
		logger.FromContext(r.Context(), h.log).Error("failed to save entry", zap.String("user_id", user.ID), zap.Error(err))
	}
	http.Redirect(w, r, service.DashboardPath, http.StatusSeeOther)
}

func (h *WebHandlers) DashboardPage(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	key := h.cacheKey(user)

	page, gen, ok := h.cache.Get(service.DashboardPath, key)
	if ok {
		writeHTML(w, page)
		return
	}

	dashboard, err := h.journal.Dashboard(r.Context(), user.ID)
	if err != nil {
		h.serverError(w, r, "failed to load dashboard", err)
		return
	}

	page, err = views.RenderDashboard(views.DashboardPage{User: *user, Dashboard: dashboard})
	if err != nil {
		h.serverError(w, r, "failed to render dashboard", err)
		return
	}
	h.cache.Put(service.DashboardPath, key, gen, page)
	writeHTML(w, page)
}

// GenerateReflection never reports failure to the browser; the outcome is
// logged by the generator and the dashboard shows whatever is stored.
func (h *WebHandlers) GenerateReflection(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	_, _ = h.reflections.Generate(r.Context(), user.ID)
	http.Redirect(w, r, service.DashboardPath, http.StatusSeeOther)
}

// cacheKey varies cached pages by user and day, since both pages depend on
// today's date.
func (h *WebHandlers) cacheKey(user *models.User) string {
	return user.ID + "|" + models.Day(h.now()).Format(models.DateLayout)
}

func (h *WebHandlers) providerMessage(r *http.Request, err error) string {
	var perr *auth.ProviderError
	if errors.As(err, &perr) && perr.Message != "" {
		return perr.Message
	}
	logger.FromContext(r.Context(), h.log).Error("identity provider request failed", zap.Error(err))
	return providerDownMessage
}

func (h *WebHandlers) renderLogin(w http.ResponseWriter, r *http.Request, data views.LoginPage) {
	page, err := views.RenderLogin(data)
	if err != nil {
		h.serverError(w, r, "failed to render login page", err)
		return
	}
	writeHTML(w, page)
}

func (h *WebHandlers) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logger.FromContext(r.Context(), h.log).Error(msg, zap.Error(err))
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func writeHTML(w http.ResponseWriter, page []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}
