package authapi

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"time"
)

// Audit lines are ordinary log records with audit=true. Login identifiers
// are fingerprinted; passwords and tokens never reach this file.

func (h *Handler) auditLoginFailed(ctx context.Context, ip net.IP, ua, identifier, reason string) {
	h.audit(ctx, "auth.login.failed", ip, ua,
		slog.String("identifier_fp", h.fingerprint(identifier)),
		slog.String("reason", reason),
	)
}

func (h *Handler) auditLoginSuccess(ctx context.Context, userID, deviceID string, ip net.IP, ua, identifier string) {
	h.audit(ctx, "auth.login.success", ip, ua,
		slog.String("user_id", userID),
		slog.String("device_id", deviceID),
		slog.String("identifier_fp", h.fingerprint(identifier)),
	)
}

func (h *Handler) auditLoginRateLimited(ctx context.Context, ip net.IP, ua string, retryAfter time.Duration) {
	h.audit(ctx, "auth.login.rate_limited", ip, ua,
		slog.Int64("retry_after_ms", retryAfter.Milliseconds()),
	)
}

func (h *Handler) auditLogout(ctx context.Context, userID, deviceID string, ip net.IP, ua string) {
	h.audit(ctx, "auth.logout", ip, ua,
		slog.String("user_id", userID),
		slog.String("device_id", deviceID),
	)
}

func (h *Handler) auditLogoutAll(ctx context.Context, userID string, removed int64, ip net.IP, ua string) {
	h.audit(ctx, "auth.logout_all", ip, ua,
		slog.String("user_id", userID),
		slog.Int64("sessions", removed),
	)
}

func (h *Handler) audit(ctx context.Context, action string, ip net.IP, ua string, attrs ...slog.Attr) {
	if h == nil || h.log == nil {
		return
	}

	base := []slog.Attr{slog.Bool("audit", true)}
	if ip != nil {
		base = append(base, slog.String("ip", ip.String()))
	}
	if ua = strings.TrimSpace(ua); ua != "" {
		base = append(base, slog.String("user_agent", ua))
	}
	h.log.LogAttrs(ctx, slog.LevelInfo, action, append(base, attrs...)...)
}

func (h *Handler) fingerprint(identifier string) string {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" {
		return ""
	}
	return h.fp.Fingerprint(identifier)
}
