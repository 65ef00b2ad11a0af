// Package httpapi is the HTTP surface over the session and app password
// services. It binds a request-scoped session to every request, accepts
// app passwords through Basic authentication and maps service errors to
// status codes.
package httpapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/davkeeper/internal/logging"
	"github.com/dmitrijs2005/davkeeper/internal/server/config"
	"github.com/dmitrijs2005/davkeeper/internal/server/models"
	"github.com/dmitrijs2005/davkeeper/internal/server/sessions"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type SessionResolver interface {
	Current(ctx context.Context, sess *sessions.Session) (*models.User, error)
	Login(ctx context.Context, sess *sessions.Session, login, password string) (*models.User, error)
	Logout(ctx context.Context, sess *sessions.Session) error
}

type AppSessions interface {
	Create(ctx context.Context, sess *sessions.Session, pairingToken *string) (*models.AppCredentials, error)
	Exchange(ctx context.Context, token string) (*models.AppCredentials, error)
	BuildRedirectURL(ctx context.Context, sess *sessions.Session) (string, error)
	Authenticate(ctx context.Context, sess *sessions.Session, token, secret string) (*models.User, error)
	List(ctx context.Context, sess *sessions.Session) ([]models.AppSession, error)
	Revoke(ctx context.Context, sess *sessions.Session, token string) error
}

type Quotas interface {
	Quota(ctx context.Context, sess *sessions.Session, user *models.User) (models.Quota, error)
}

type Handler struct {
	resolver SessionResolver
	apps     AppSessions
	quotas   Quotas
	store    sessions.Store
	log      logging.Logger

	secret       []byte
	sessionTTL   time.Duration
	secureCookie bool
	origin       string
}

func NewHandler(resolver SessionResolver, apps AppSessions, quotas Quotas, store sessions.Store,
	cfg *config.Config, log logging.Logger) *Handler {
	h := &Handler{
		resolver:   resolver,
		apps:       apps,
		quotas:     quotas,
		store:      store,
		log:        log.With("module", "http"),
		secret:     []byte(cfg.SecretKey),
		sessionTTL: cfg.SessionValidity,
	}

	if u, err := url.Parse(cfg.BaseURL); err == nil && u.Host != "" {
		h.secureCookie = u.Scheme == "https"
		h.origin = u.Scheme + "://" + u.Host
	}
	return h
}

// Router returns the HTTP routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if h.origin != "" {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{h.origin},
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(h.sessionMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
		r.Get("/quota", h.Quota)

		r.Route("/app-sessions", func(r chi.Router) {
			r.Post("/", h.CreateAppSession)
			r.Get("/", h.ListAppSessions)
			r.Post("/exchange", h.ExchangeAppSession)
			r.Get("/redirect", h.RedirectAppSession)
			r.Delete("/{token}", h.RevokeAppSession)
		})
	})

	return r
}

// userView is what the API reveals about a user.
type userView struct {
	Login       string `json:"login"`
	IsAdmin     bool   `json:"is_admin"`
	QuotaBytes  int64  `json:"quota_bytes"`
	ExternalURL string `json:"external_url"`
}

func newUserView(u *models.User) userView {
	return userView{Login: u.Login, IsAdmin: u.IsAdmin, QuotaBytes: u.QuotaBytes, ExternalURL: u.ExternalURL}
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	user, err := h.resolver.Login(r.Context(), sessions.FromContext(r.Context()), req.Login, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newUserView(user))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.resolver.Logout(r.Context(), sessions.FromContext(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.resolver.Current(r.Context(), sessions.FromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if user == nil {
		h.unauthorized(w)
		return
	}
	h.writeJSON(w, http.StatusOK, newUserView(user))
}

func (h *Handler) Quota(w http.ResponseWriter, r *http.Request) {
	q, err := h.quotas.Quota(r.Context(), sessions.FromContext(r.Context()), nil)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, q)
}

type createAppSessionRequest struct {
	PairingToken *string `json:"pairing_token,omitempty"`
}

func (h *Handler) CreateAppSession(w http.ResponseWriter, r *http.Request) {
	var req createAppSessionRequest
	if !h.decode(w, r, &req, true) {
		return
	}

	creds, err := h.apps.Create(r.Context(), sessions.FromContext(r.Context()), req.PairingToken)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, creds)
}

func (h *Handler) ListAppSessions(w http.ResponseWriter, r *http.Request) {
	list, err := h.apps.List(r.Context(), sessions.FromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []models.AppSession{}
	}
	h.writeJSON(w, http.StatusOK, list)
}

type exchangeRequest struct {
	Token string `json:"token"`
}

func (h *Handler) ExchangeAppSession(w http.ResponseWriter, r *http.Request) {
	var req exchangeRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	creds, err := h.apps.Exchange(r.Context(), strings.TrimSpace(req.Token))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, creds)
}

func (h *Handler) RedirectAppSession(w http.ResponseWriter, r *http.Request) {
	target, err := h.apps.BuildRedirectURL(r.Context(), sessions.FromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) RevokeAppSession(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := h.apps.Revoke(r.Context(), sessions.FromContext(r.Context()), token); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
