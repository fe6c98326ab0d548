package token

import "context"

// Grant is the outcome of one successful OAuth exchange with the EVE SSO.
type Grant struct {
	AccessToken   string
	RefreshToken  string
	CharacterName string
	CharacterID   int64
}

// Issuer performs the OAuth exchanges the store cannot do on its own.
// Issue runs the full authorization flow for an application, typically
// involving a browser round trip; Refresh exchanges a refresh token for a
// fresh access token without user interaction.
type Issuer interface {
	Issue(ctx context.Context, app Application) (Grant, error)
	Refresh(ctx context.Context, app Application, refreshToken string) (Grant, error)
}
