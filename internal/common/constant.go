package common

const (
	// AccessTokenHeaderName is the gRPC metadata key used to carry the
	// access token on outbound requests.
	AccessTokenHeaderName = "access_token"

	// SessionCookieName names the opaque session cookie and the matching
	// gRPC metadata key.
	SessionCookieName = "session_token"

	// MinPasswordLength is the shortest password accepted at registration
	// and password change.
	MinPasswordLength = 4

	UserTypeNormal = "normal"
	UserTypeAdmin  = "admin"
)
