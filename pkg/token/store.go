package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AnyCharacter selects whichever token the store holds first.
const AnyCharacter = "any"

// ErrNoMatchingToken is returned when a specific character is requested and
// the store holds no token for it.
var ErrNoMatchingToken = errors.New("no matching token")

// Store manages the tokens of one application. Tokens live in a JSON
// document shared by all applications, keyed by client id; the store loads
// its own slice at construction and writes changes back on Persist. A dirty
// flag keeps Persist from rewriting the file when nothing changed.
//
// Store is safe for concurrent use.
type Store struct {
	app    Application
	path   string
	issuer Issuer
	logger zerolog.Logger

	mu     sync.Mutex
	tokens []*Token
	dirty  bool
}

// NewStore opens the token document at path and loads the tokens registered
// for the application. A missing document is treated as empty. Incomplete
// records are skipped.
func NewStore(app Application, path string, issuer Issuer, logger zerolog.Logger) (*Store, error) {
	s := &Store{
		app:    app,
		path:   path,
		issuer: issuer,
		logger: logger.With().Str("component", "token_store").Str("client_id", app.ClientID).Logger(),
	}

	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	for _, t := range doc[app.ClientID] {
		if t.AccessToken == "" || t.RefreshToken == "" {
			s.logger.Warn().Str("character", t.CharacterName).Msg("skipping incomplete token record")
			continue
		}
		tok := t
		tok.ClientID = app.ClientID
		s.tokens = append(s.tokens, &tok)
	}
	return s, nil
}

// Application returns the application this store serves.
func (s *Store) Application() Application {
	return s.app
}

// Len returns the number of tokens held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// Get returns a usable token for the character, refreshing it first when
// stale. cname AnyCharacter (or empty) selects the first token held. When no
// token matches and the character selector is open, a new token is issued
// through the Issuer; a failed refresh likewise falls back to issuance. A
// specific character with no stored token yields ErrNoMatchingToken, since
// issuance cannot guarantee which character the user logs in as.
//
// The returned token is a private copy. The store's internal record never
// escapes, so callers can read it while a concurrent refresh rewrites the
// stored one.
func (s *Store) Get(ctx context.Context, cname string) (*Token, error) {
	s.mu.Lock()
	tok := s.find(cname)
	s.mu.Unlock()

	if tok == nil {
		if cname != "" && cname != AnyCharacter {
			return nil, fmt.Errorf("%w: character %q", ErrNoMatchingToken, cname)
		}
		return s.Generate(ctx)
	}

	if err := s.refreshToken(ctx, tok); err != nil {
		s.logger.Warn().Err(err).Str("character", tok.CharacterName).
			Msg("token refresh failed, issuing a new token")
		return s.Generate(ctx)
	}
	return s.snapshot(tok), nil
}

// Refresh refreshes the stale tokens matching cname. Fresh tokens are left
// alone so repeated calls within the validity window stay cheap. It reports
// whether every matching token ended up usable; false when no token matches
// or a refresh exchange failed.
func (s *Store) Refresh(ctx context.Context, cname string) bool {
	s.mu.Lock()
	var matched []*Token
	for _, t := range s.tokens {
		if cname == "" || cname == AnyCharacter || t.CharacterName == cname {
			matched = append(matched, t)
		}
	}
	s.mu.Unlock()

	if len(matched) == 0 {
		return false
	}
	for _, t := range matched {
		if err := s.refreshToken(ctx, t); err != nil {
			s.logger.Warn().Err(err).Str("character", t.CharacterName).Msg("token refresh failed")
			return false
		}
	}
	return true
}

// Generate runs the full issuance flow and stores the resulting token. If a
// token for the same character already exists it is replaced in place rather
// than duplicated. The returned token is a private copy.
func (s *Store) Generate(ctx context.Context) (*Token, error) {
	grant, err := s.issuer.Issue(ctx, s.app)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	tok := &Token{
		AccessToken:   grant.AccessToken,
		RetrieveTime:  time.Now().Unix(),
		RefreshToken:  grant.RefreshToken,
		CharacterName: grant.CharacterName,
		CharacterID:   grant.CharacterID,
		ClientID:      s.app.ClientID,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := *tok
	for i, existing := range s.tokens {
		if existing.CharacterID == tok.CharacterID {
			s.tokens[i] = tok
			s.dirty = true
			s.logger.Info().Str("character", tok.CharacterName).Msg("token replaced")
			return &out, nil
		}
	}
	s.tokens = append(s.tokens, tok)
	s.dirty = true
	s.logger.Info().Str("character", tok.CharacterName).Msg("token issued")
	return &out, nil
}

// Remove drops the token for the character and returns a copy of it.
func (s *Store) Remove(cname string) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range s.tokens {
		if t.CharacterName == cname {
			s.tokens = append(s.tokens[:i], s.tokens[i+1:]...)
			s.dirty = true
			out := *t
			return &out, nil
		}
	}
	return nil, fmt.Errorf("%w: character %q", ErrNoMatchingToken, cname)
}

// Persist writes the store's tokens back into the shared document, leaving
// other applications' entries untouched. A clean store does not touch the
// file.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}

	doc, err := readDocument(s.path)
	if err != nil {
		return err
	}
	snapshot := make([]Token, len(s.tokens))
	for i, t := range s.tokens {
		snapshot[i] = *t
	}
	doc[s.app.ClientID] = snapshot

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal tokens: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write tokens: %w", err)
	}

	s.dirty = false
	s.logger.Debug().Int("tokens", len(s.tokens)).Msg("token store persisted")
	return nil
}

// Close persists any unsaved tokens.
func (s *Store) Close() error {
	return s.Persist()
}

// refreshToken refreshes one token if it is stale. Tokens refreshed within
// the validity window are returned as-is.
func (s *Store) refreshToken(ctx context.Context, tok *Token) error {
	s.mu.Lock()
	stale := tok.Stale()
	refreshToken := tok.RefreshToken
	s.mu.Unlock()

	if !stale {
		return nil
	}

	grant, err := s.issuer.Refresh(ctx, s.app, refreshToken)
	if err != nil {
		return fmt.Errorf("refresh token: %w", err)
	}

	s.mu.Lock()
	tok.AccessToken = grant.AccessToken
	tok.RetrieveTime = time.Now().Unix()
	if grant.RefreshToken != "" {
		tok.RefreshToken = grant.RefreshToken
	}
	s.dirty = true
	s.mu.Unlock()

	s.logger.Debug().Str("character", tok.CharacterName).Msg("token refreshed")
	return nil
}

// snapshot copies a token under the lock so the store's internal record
// stays private.
func (s *Store) snapshot(tok *Token) *Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := *tok
	return &out
}

// find returns the token matching cname, or the first token when cname is
// open. Caller holds the lock.
func (s *Store) find(cname string) *Token {
	if len(s.tokens) == 0 {
		return nil
	}
	if cname == "" || cname == AnyCharacter {
		return s.tokens[0]
	}
	for _, t := range s.tokens {
		if t.CharacterName == cname {
			return t
		}
	}
	return nil
}

// readDocument loads the shared token document, mapping client ids to their
// token lists. A missing or empty file yields an empty document.
func readDocument(path string) (map[string][]Token, error) {
	doc := make(map[string][]Token)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return nil, fmt.Errorf("read tokens: %w", err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse tokens: %w", err)
	}
	return doc, nil
}
