// Package token manages OAuth credentials for ESI applications: loading and
// persisting tokens, refreshing stale access tokens, and driving initial
// issuance through an external Issuer.
package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// RefreshThreshold is the token age after which the access token is treated
// as stale. ESI access tokens are valid for 1199 seconds; one second is
// shaved off so a token is never used right at its expiry. The same
// threshold throttles refresh calls: a token refreshed more recently is left
// alone.
const RefreshThreshold = 1198 * time.Second

// Token holds one OAuth credential. (ClientID, CharacterName) is the
// primary key.
type Token struct {
	AccessToken   string `json:"access_token"`
	RetrieveTime  int64  `json:"retrieve_time"`
	RefreshToken  string `json:"refresh_token"`
	CharacterName string `json:"character_name"`
	CharacterID   int64  `json:"character_id"`
	ClientID      string `json:"client_id"`
}

// Age returns the time since the token was last retrieved or refreshed.
func (t *Token) Age() time.Duration {
	return time.Since(time.Unix(t.RetrieveTime, 0))
}

// Stale reports whether the access token needs a refresh before reuse.
func (t *Token) Stale() bool {
	return t.Age() >= RefreshThreshold
}

// Application identifies one registered ESI application. ClientID is the
// primary key; Scope is the space-separated scope string from the developer
// site.
type Application struct {
	ClientID    string `json:"client_id"`
	Scope       string `json:"scope"`
	CallbackURL string `json:"callback_url"`
}

// DefaultCallback is the recommended local callback URL for native apps.
const DefaultCallback = "https://localhost/callback/"

// HasScopes reports whether the application is registered for all the given
// scopes.
func (a Application) HasScopes(scopes []string) bool {
	registered := make(map[string]bool)
	for _, s := range strings.Fields(a.Scope) {
		registered[s] = true
	}
	for _, s := range scopes {
		if !registered[s] {
			return false
		}
	}
	return true
}

// ErrNoApplication is returned when no registered application covers a
// requested scope set.
var ErrNoApplication = errors.New("no application with required scope")

// Applications is the registry of locally configured applications, persisted
// as a JSON list.
type Applications struct {
	apps []Application
	path string
}

// LoadApplications reads the application document at path. A missing or
// empty file yields an empty registry.
func LoadApplications(path string) (*Applications, error) {
	reg := &Applications{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return reg, nil
		}
		return nil, fmt.Errorf("read applications: %w", err)
	}
	if len(data) == 0 {
		return reg, nil
	}

	if err := json.Unmarshal(data, &reg.apps); err != nil {
		return nil, fmt.Errorf("parse applications: %w", err)
	}
	return reg, nil
}

// SearchScopes finds the first application registered for all given scopes.
func (r *Applications) SearchScopes(scopes []string) (Application, error) {
	for _, app := range r.apps {
		if app.HasScopes(scopes) {
			return app, nil
		}
	}
	return Application{}, fmt.Errorf("%w: %v", ErrNoApplication, scopes)
}

// Add registers an application. An existing application with the same client
// id is updated in place.
func (r *Applications) Add(app Application) {
	if app.CallbackURL == "" {
		app.CallbackURL = DefaultCallback
	}
	for i := range r.apps {
		if r.apps[i].ClientID == app.ClientID {
			r.apps[i] = app
			return
		}
	}
	r.apps = append(r.apps, app)
}

// All returns the registered applications.
func (r *Applications) All() []Application {
	return r.apps
}

// Save writes the registry back to its document. The registry holds every
// application from the file, so the write truncates.
func (r *Applications) Save() error {
	if len(r.apps) == 0 {
		return nil
	}
	data, err := json.Marshal(r.apps)
	if err != nil {
		return fmt.Errorf("marshal applications: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0o600); err != nil {
		return fmt.Errorf("write applications: %w", err)
	}
	return nil
}
