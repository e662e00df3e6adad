// Package httpapi exposes the authentication service over HTTP/JSON.
package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/gorilla/mux"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

type Server struct {
	users    *services.UserService
	resolver *services.IdentityResolver
	limiter  Limiter
	proxies  TrustedProxies
	cookie   cookieSettings
	logger   logging.Logger
}

type cookieSettings struct {
	maxAge time.Duration
}

// Option customises a Server.
type Option func(*Server)

// WithTrustedProxies lets the listed proxies name the client for rate limiting.
func WithTrustedProxies(tp TrustedProxies) Option {
	return func(s *Server) { s.proxies = tp }
}

// NewServer builds the HTTP API. limiter guards POST /login and may be nil.
func NewServer(users *services.UserService, resolver *services.IdentityResolver, limiter Limiter,
	sessionTTL time.Duration, logger logging.Logger, opts ...Option) *Server {
	s := &Server{
		users:    users,
		resolver: resolver,
		limiter:  limiter,
		cookie:   cookieSettings{maxAge: sessionTTL},
		logger:   logger.With("module", "http"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the routed handler with logging applied to every request.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestLog)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	r.Handle("/login", s.rateLimit(http.HandlerFunc(s.handleLogin))).Methods(http.MethodPost)
	r.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/verify-token", s.handleVerifyToken).Methods(http.MethodPost)

	authed := r.NewRoute().Subrouter()
	authed.Use(s.identity)
	authed.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	authed.HandleFunc("/current-user", s.handleCurrentUser).Methods(http.MethodGet)
	authed.HandleFunc("/users", s.handleListUsers).Methods(http.MethodGet)
	authed.HandleFunc("/user", s.handleUpdateProfile).Methods(http.MethodPut)
	authed.HandleFunc("/user/password", s.handleChangePassword).Methods(http.MethodPatch)
	authed.HandleFunc("/user", s.handleDeleteAccount).Methods(http.MethodDelete)
	authed.HandleFunc("/users/{username}", s.handleDeleteUser).Methods(http.MethodDelete)

	return r
}
