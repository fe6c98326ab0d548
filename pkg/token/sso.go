package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// SSOTokenURL is the EVE SSO token exchange endpoint.
const SSOTokenURL = "https://login.eveonline.com/v2/oauth/token"

// ErrInteractiveAuthRequired is returned by RefreshIssuer.Issue: the full
// authorization flow needs a browser and cannot run headless. Provision the
// initial refresh token with an interactive tool and hand it to the store's
// token document.
var ErrInteractiveAuthRequired = errors.New("interactive authorization required")

// RefreshIssuer exchanges refresh tokens against the EVE SSO. It covers the
// steady-state token lifecycle; initial issuance is delegated to whatever
// interactive flow provisioned the refresh token.
type RefreshIssuer struct {
	// TokenURL overrides the SSO endpoint, for tests. Defaults to
	// SSOTokenURL.
	TokenURL string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// Issue always fails with ErrInteractiveAuthRequired.
func (i *RefreshIssuer) Issue(_ context.Context, app Application) (Grant, error) {
	return Grant{}, fmt.Errorf("client %s: %w", app.ClientID, ErrInteractiveAuthRequired)
}

// Refresh performs the refresh_token grant for a native (public) SSO
// application.
func (i *RefreshIssuer) Refresh(ctx context.Context, app Application, refreshToken string) (Grant, error) {
	endpoint := i.TokenURL
	if endpoint == "" {
		endpoint = SSOTokenURL
	}
	httpClient := i.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {app.ClientID},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Grant{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Host", "login.eveonline.com")

	resp, err := httpClient.Do(req)
	if err != nil {
		return Grant{}, fmt.Errorf("sso refresh: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Grant{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return Grant{}, fmt.Errorf("sso refresh returned %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Grant{}, fmt.Errorf("decode sso response: %w", err)
	}
	if payload.AccessToken == "" {
		return Grant{}, errors.New("sso response carries no access token")
	}

	return Grant{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
	}, nil
}
