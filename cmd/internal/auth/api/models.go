package authapi

type loginIdentifier struct {
	Type string `json:"type"`
	User string `json:"user"`
}

type loginRequest struct {
	Type       string           `json:"type"`
	Identifier *loginIdentifier `json:"identifier"`
	User       string           `json:"user"`
	Address    string           `json:"address"`
	Password   string           `json:"password"`

	DeviceID                 string `json:"device_id"`
	InitialDeviceDisplayName string `json:"initial_device_display_name"`
}

type loginResponse struct {
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
	DeviceID    string `json:"device_id"`
	ExpiresInMs int64  `json:"expires_in_ms"`
	HomeServer  string `json:"home_server"`
}

type loginFlow struct {
	Type string `json:"type"`
}

type loginFlowsResponse struct {
	Flows []loginFlow `json:"flows"`
}

type whoamiResponse struct {
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id"`
}

type versionsResponse struct {
	Versions []string `json:"versions"`
}

type baseURL struct {
	BaseURL string `json:"base_url"`
}

type wellKnownResponse struct {
	Homeserver     baseURL  `json:"m.homeserver"`
	IdentityServer *baseURL `json:"m.identity_server,omitempty"`
}

type tokenValidityResponse struct {
	Valid bool `json:"valid"`
}
