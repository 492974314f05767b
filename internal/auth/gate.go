// Package auth implements the fixed-credential gate in front of the API.
package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/Raleighawesome/family-movies/internal/config"
	"github.com/Raleighawesome/family-movies/internal/model"

	"golang.org/x/crypto/bcrypt"
)

// Gate validates Basic credentials against exactly one configured identity.
// It holds no per-request state.
type Gate struct {
	username     string
	passwordHash []byte
	identity     model.Identity
	realm        string
}

// NewGate hashes the configured password once so requests never compare plaintext.
func NewGate(cfg config.AuthConfig) (*Gate, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("username and password are required")
	}
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	realm := cfg.Realm
	if realm == "" {
		realm = "Family Movies"
	}

	return &Gate{
		username:     cfg.Username,
		passwordHash: hash,
		identity: model.Identity{
			ID:       cfg.UserID,
			Email:    cfg.Email,
			Username: cfg.Username,
		},
		realm: realm,
	}, nil
}

// ParseBasic splits an Authorization header into username and password.
func ParseBasic(header string) (username, password string, ok bool) {
	scheme, encoded, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "basic") || encoded == "" {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", "", false
	}
	username, password, found = strings.Cut(string(decoded), ":")
	if !found {
		return "", "", false
	}
	return username, password, true
}

// Authenticate returns the configured identity when header carries the
// configured credential.
func (g *Gate) Authenticate(header string) (*model.Identity, bool) {
	username, password, ok := ParseBasic(header)
	if !ok {
		return nil, false
	}

	usernameMatch := subtle.ConstantTimeCompare([]byte(username), []byte(g.username)) == 1
	passwordMatch := bcrypt.CompareHashAndPassword(g.passwordHash, []byte(password)) == nil
	if !usernameMatch || !passwordMatch {
		return nil, false
	}

	identity := g.identity
	return &identity, true
}

// Challenge is the WWW-Authenticate value sent with 401 responses.
func (g *Gate) Challenge() string {
	return fmt.Sprintf("Basic realm=%q", g.realm)
}

// Identity is the fixed principal the gate admits.
func (g *Gate) Identity() model.Identity {
	return g.identity
}
