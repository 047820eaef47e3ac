package authapi

import (
	"net/http"
	"strings"
)

// SupportedVersions lists the Matrix client-server API versions advertised by /versions.
var SupportedVersions = []string{"v1.13"}

func (h *Handler) handleVersions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, versionsResponse{Versions: SupportedVersions})
}

func (h *Handler) handleWellKnown(w http.ResponseWriter, r *http.Request) {
	base := strings.TrimSpace(h.cfg.BaseURL)
	if base == "" {
		base = "https://" + h.cfg.ServerName
	}

	resp := wellKnownResponse{Homeserver: baseURL{BaseURL: strings.TrimRight(base, "/")}}
	if is := strings.TrimSpace(h.cfg.IdentityServer); is != "" {
		resp.IdentityServer = &baseURL{BaseURL: strings.TrimRight(is, "/")}
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")
	writeJSON(w, http.StatusOK, resp)
}

// Registration is out of band (haven user create), so no token is ever valid.
func (h *Handler) handleTokenValidity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, tokenValidityResponse{Valid: false})
}
