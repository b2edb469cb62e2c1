// Package identity implements password accounts and opaque session tokens.
package identity

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/debemdeboas/quill/internal/apperr"
	"github.com/debemdeboas/quill/internal/db"
	"github.com/debemdeboas/quill/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var identityLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	identityLogger = l
}

const (
	DefaultSessionTTL        = 7 * 24 * time.Hour
	DefaultMinPasswordLength = 6
)

var errInvalidCredentials = apperr.New(apperr.KindInvalidCredentials, "login", "invalid email or password")

type Options struct {
	SessionTTL        time.Duration
	MinPasswordLength int
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// Provider owns the accounts table and issues sessions into a SessionStore.
type Provider struct {
	db       db.DB
	sessions SessionStore
	opts     Options
	now      func() time.Time
}

func NewProvider(database db.DB, sessions SessionStore, opts Options) *Provider {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.MinPasswordLength <= 0 {
		opts.MinPasswordLength = DefaultMinPasswordLength
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &Provider{
		db:       database,
		sessions: sessions,
		opts:     opts,
		now:      time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *Provider) CreateAccount(ctx context.Context, email, password, displayName string) (model.Identity, error) {
	const op = "create-account"

	email = normalizeEmail(email)
	if email == "" {
		return model.Identity{}, apperr.New(apperr.KindValidation, op, "email is required")
	}
	if len(password) < p.opts.MinPasswordLength {
		return model.Identity{}, apperr.New(apperr.KindValidation, op, "password is too short")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.opts.BcryptCost)
	if err != nil {
		return model.Identity{}, apperr.Wrap(apperr.KindValidation, op, err)
	}

	identity := model.Identity{
		ID:          model.UserID(uuid.NewString()),
		DisplayName: strings.TrimSpace(displayName),
		Email:       email,
	}

	_, err = p.db.Exec(ctx,
		`INSERT INTO users (id, email, display_name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		identity.ID, identity.Email, identity.DisplayName, hash, p.now().UTC())
	if err != nil {
		if db.IsUniqueViolation(err) {
			return model.Identity{}, apperr.New(apperr.KindConflict, op, "email already registered")
		}
		return model.Identity{}, apperr.Classify(op, err)
	}

	identityLogger.Info().Str("user_id", string(identity.ID)).Msg("Account created")
	return identity, nil
}

// Authenticate checks the credentials and returns a new session token.
func (p *Provider) Authenticate(ctx context.Context, email, password string) (string, error) {
	var (
		userID model.UserID
		hash   []byte
	)
	err := p.db.QueryRow(ctx,
		`SELECT id, password_hash FROM users WHERE email = ?`, normalizeEmail(email),
	).Scan(&userID, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errInvalidCredentials
	}
	if err != nil {
		return "", apperr.Classify("login", err)
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		identityLogger.Debug().Str("user_id", string(userID)).Msg("Password mismatch")
		return "", errInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return "", apperr.Classify("login", err)
	}

	now := p.now().UTC()
	rec := SessionRecord{
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(p.opts.SessionTTL),
	}
	if err := p.sessions.Create(ctx, rec); err != nil {
		return "", apperr.Classify("login", err)
	}

	identityLogger.Info().Str("user_id", string(userID)).Msg("Session created")
	return token, nil
}

// Resolve returns the identity behind token. Unknown and expired tokens
// yield apperr.ErrNoSession.
func (p *Provider) Resolve(ctx context.Context, token string) (model.Identity, error) {
	if token == "" {
		return model.Identity{}, apperr.ErrNoSession
	}

	rec, err := p.sessions.Get(ctx, token)
	if err != nil {
		return model.Identity{}, apperr.Classify("resolve", err)
	}
	if rec == nil {
		return model.Identity{}, apperr.ErrNoSession
	}
	if rec.Expired(p.now()) {
		_ = p.sessions.Delete(ctx, token)
		return model.Identity{}, apperr.ErrNoSession
	}

	identity := model.Identity{ID: rec.UserID}
	var displayName sql.NullString
	err = p.db.QueryRow(ctx,
		`SELECT email, display_name FROM users WHERE id = ?`, rec.UserID,
	).Scan(&identity.Email, &displayName)
	if errors.Is(err, sql.ErrNoRows) {
		// Account removed behind a live session.
		_ = p.sessions.Delete(ctx, token)
		return model.Identity{}, apperr.ErrNoSession
	}
	if err != nil {
		return model.Identity{}, apperr.Classify("resolve", err)
	}
	identity.DisplayName = displayName.String

	return identity, nil
}

func (p *Provider) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := p.sessions.Delete(ctx, token); err != nil {
		return apperr.Classify("logout", err)
	}
	return nil
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
