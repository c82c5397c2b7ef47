package models

// TokenPair is an access/refresh token pair. Both tokens are signed JWTs
// carrying the user id, an expiry and a token_type claim; neither is stored
// server-side.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	// ExpiresAt is the unix expiry of the access token. The JSON name keeps
	// the wire contract of the original API.
	ExpiresAt int64 `json:"exprires_at"`
}

// LoginResponse is returned by register, password and social login, and
// refresh.
type LoginResponse struct {
	TokenPair
	User *User `json:"user"`
}
