package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"haven/cmd/identity"
	"haven/cmd/internal/auth/authn"
	"haven/cmd/internal/auth/session"
	"haven/cmd/security/token"
)

// Sessions is the session lifecycle the handlers drive.
type Sessions interface {
	Login(ctx context.Context, req session.LoginRequest) (session.LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
	LogoutAll(ctx context.Context, userID string) (int64, error)
}

// Users resolves user IDs to accounts.
type Users interface {
	GetUserByID(ctx context.Context, id string) (identity.User, error)
}

// Handler serves the Matrix client-server auth endpoints.
type Handler struct {
	log *slog.Logger
	cfg Config

	sessions Sessions
	users    Users

	metrics *Metrics
	limiter *ipLimiter
	fp      token.Fingerprinter
	now     func() time.Time
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithMetrics records login/logout outcomes on m.
func WithMetrics(m *Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// WithFingerprinter sets how login identifiers are hashed in audit lines.
func WithFingerprinter(fp token.Fingerprinter) HandlerOption {
	return func(h *Handler) { h.fp = fp }
}

// WithClock overrides the time source used by the rate limiter.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs a Handler.
func NewHandler(log *slog.Logger, cfg Config, sessions Sessions, users Users, opts ...HandlerOption) (*Handler, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	if sessions == nil || users == nil {
		return nil, errors.New("authapi: nil sessions or users")
	}
	if log == nil {
		log = slog.Default()
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		sessions: sessions,
		users:    users,
		limiter:  newIPLimiter(cfg.LoginRateLimit),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register wires the client API routes onto mux. Guarded routes reject
// requests without an identity attached by authn.Authenticator.
func (h *Handler) Register(mux *http.ServeMux) {
	guard := authn.Guard(h.Unauthorized())

	mux.Handle("/_matrix/client/v3/login", allow(h.handleLogin, http.MethodGet, http.MethodPost))
	mux.Handle("/_matrix/client/v3/logout", allow(guard(http.HandlerFunc(h.handleLogout)).ServeHTTP, http.MethodPost))
	mux.Handle("/_matrix/client/v3/logout/all", allow(guard(http.HandlerFunc(h.handleLogoutAll)).ServeHTTP, http.MethodPost))
	mux.Handle("/_matrix/client/v3/account/whoami", allow(guard(http.HandlerFunc(h.handleWhoami)).ServeHTTP, http.MethodGet))

	mux.Handle("/_matrix/client/versions", allow(h.handleVersions, http.MethodGet))
	mux.Handle("/.well-known/matrix/client", allow(h.handleWellKnown, http.MethodGet))
	mux.Handle("/_matrix/client/v1/register/m.login.registration_token/validity", allow(h.handleTokenValidity, http.MethodGet))

	mux.HandleFunc("/_matrix/", handleUnrecognized)
}

// Unauthorized is the single 401 response for every authentication failure.
func (h *Handler) Unauthorized() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeUnknownToken(w)
	})
}

// allow answers 405 M_UNRECOGNIZED for methods outside methods.
func allow(fn http.HandlerFunc, methods ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, m := range methods {
			if r.Method == m {
				fn(w, r)
				return
			}
		}
		w.Header().Set("Allow", strings.Join(methods, ", "))
		writeError(w, http.StatusMethodNotAllowed, ErrCodeUnrecognized, "Method not allowed")
	})
}

func handleUnrecognized(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, ErrCodeUnrecognized, "Unrecognized request")
}

// ---- handlers ----

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, loginFlowsResponse{Flows: []loginFlow{{Type: session.LoginTypePassword}}})
		return
	}

	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := r.UserAgent()

	if ok, retryAfter := h.limiter.allow(limiterKey(ip), h.now()); !ok {
		h.metrics.login("rate_limited")
		h.auditLoginRateLimited(ctx, ip, ua, retryAfter)
		writeRateLimited(w, retryAfter)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		h.metrics.login("not_json")
		writeDecodeError(w, err)
		return
	}

	in := session.LoginRequest{
		Type:       req.Type,
		Address:    req.Address,
		User:       req.User,
		Password:   req.Password,
		DeviceID:   req.DeviceID,
		DeviceName: req.InitialDeviceDisplayName,
	}
	if req.Identifier != nil {
		in.Identifier = &session.UserIdentifier{Type: req.Identifier.Type, User: req.Identifier.User}
	}
	identifier := firstNonEmpty(req.Address, req.User, identifierUser(req.Identifier))

	res, err := h.sessions.Login(ctx, in)
	if err != nil {
		h.metrics.login("error")
		h.log.ErrorContext(ctx, "auth.login.fail", "err", err)
		writeInternal(w)
		return
	}

	h.metrics.login(res.Status.String())

	switch res.Status {
	case session.LoginOK:
		h.auditLoginSuccess(ctx, res.UserID, res.DeviceID, ip, ua, identifier)
		writeJSON(w, http.StatusOK, loginResponse{
			UserID:      identity.QualifiedID(res.Name, h.cfg.ServerName),
			AccessToken: res.AccessToken,
			DeviceID:    res.DeviceID,
			ExpiresInMs: res.ExpiresIn.Milliseconds(),
			HomeServer:  h.cfg.ServerName,
		})
	case session.LoginUnsupported:
		writeError(w, http.StatusBadRequest, ErrCodeUnrecognized, msgUnsupportedType)
	case session.LoginCredentialsInvalid:
		h.auditLoginFailed(ctx, ip, ua, identifier, "credentials_invalid")
		writeError(w, http.StatusForbidden, ErrCodeForbidden, msgBadCredentials)
	default:
		writeError(w, http.StatusBadRequest, ErrCodeBadJSON, msgMalformed)
	}
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := authn.RequireIdentity(ctx)
	if err != nil {
		writeUnknownToken(w)
		return
	}

	if err := h.sessions.Logout(ctx, id.SessionID); err != nil {
		h.log.ErrorContext(ctx, "auth.logout.fail", "err", err)
		writeInternal(w)
		return
	}

	h.metrics.logout("device")
	h.auditLogout(ctx, id.UserID, id.DeviceID, clientIP(r, h.cfg.TrustProxy), r.UserAgent())
	writeJSON(w, http.StatusOK, emptyObject)
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := authn.RequireIdentity(ctx)
	if err != nil {
		writeUnknownToken(w)
		return
	}

	n, err := h.sessions.LogoutAll(ctx, id.UserID)
	if err != nil {
		h.log.ErrorContext(ctx, "auth.logout_all.fail", "err", err)
		writeInternal(w)
		return
	}

	h.metrics.logout("all")
	h.auditLogoutAll(ctx, id.UserID, n, clientIP(r, h.cfg.TrustProxy), r.UserAgent())
	writeJSON(w, http.StatusOK, emptyObject)
}

func (h *Handler) handleWhoami(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := authn.RequireIdentity(ctx)
	if err != nil {
		writeUnknownToken(w)
		return
	}

	u, err := h.users.GetUserByID(ctx, id.UserID)
	if identity.IsNotFound(err) {
		writeUnknownToken(w)
		return
	}
	if err != nil {
		h.log.ErrorContext(ctx, "auth.whoami.fail", "err", err)
		writeInternal(w)
		return
	}

	writeJSON(w, http.StatusOK, whoamiResponse{
		UserID:   identity.QualifiedID(u.Name, h.cfg.ServerName),
		DeviceID: id.DeviceID,
	})
}

// ---- helpers ----

func identifierUser(id *loginIdentifier) string {
	if id == nil {
		return ""
	}
	return id.User
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func limiterKey(ip net.IP) string {
	if ip == nil {
		return "unknown"
	}
	return ip.String()
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
