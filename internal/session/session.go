// Package session owns the current identity and gates authoring operations.
package session

import (
	"context"
	"errors"
	"net/mail"
	"sync"

	"github.com/debemdeboas/quill/internal/apperr"
	"github.com/debemdeboas/quill/internal/model"
	"github.com/debemdeboas/quill/internal/notify"
	"github.com/rs/zerolog"
)

var sessionLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	sessionLogger = l
}

// IdentityService is the remote authentication provider.
// GetCurrentIdentity wraps apperr.ErrNoSession when nobody is logged in.
type IdentityService interface {
	CreateAccount(ctx context.Context, email, password, displayName string) (model.Identity, error)
	CreateSession(ctx context.Context, email, password string) error
	GetCurrentIdentity(ctx context.Context) (model.Identity, error)
	DestroySession(ctx context.Context) error
}

type Status int

const (
	StatusUnknown Status = iota
	StatusResolving
	StatusAuthenticated
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusResolving:
		return "resolving"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State is a read-only snapshot. Identity is non-nil only when Authenticated.
type State struct {
	Status   Status          `json:"status"`
	Identity *model.Identity `json:"identity,omitempty"`
}

type Manager struct {
	mu       sync.RWMutex
	status   Status
	identity *model.Identity

	identities IdentityService
	notifier   notify.Notifier
}

func NewManager(identities IdentityService, notifier notify.Notifier) *Manager {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Manager{
		status:     StatusUnknown,
		identities: identities,
		notifier:   notifier,
	}
}

// Initialize resolves the current identity. It must return before gated
// controls are shown. A missing session is not an error.
func (m *Manager) Initialize(ctx context.Context) error {
	m.set(StatusResolving, nil)

	identity, err := m.identities.GetCurrentIdentity(ctx)
	if err != nil {
		m.set(StatusAnonymous, nil)
		if errors.Is(err, apperr.ErrNoSession) {
			sessionLogger.Debug().Msg("No current session")
			return nil
		}
		err = apperr.Classify("initialize", err)
		sessionLogger.Warn().Err(err).Msg("Identity lookup failed")
		return err
	}

	m.set(StatusAuthenticated, &identity)
	sessionLogger.Debug().Str("user_id", string(identity.ID)).Msg("Session resolved")
	return nil
}

func (m *Manager) Login(ctx context.Context, email, password string) error {
	if err := validateCredentials(email, password); err != nil {
		err = apperr.Wrap(apperr.KindValidation, "login", err)
		m.notifier.Notify(notify.Failure(err, "Login failed."))
		return err
	}

	identity, err := m.login(ctx, email, password)
	if err != nil {
		err = apperr.Classify("login", err)
		sessionLogger.Info().Err(err).Str("email", email).Msg("Login failed")
		m.notifier.Notify(notify.Failure(err, "Login failed."))
		return err
	}

	m.set(StatusAuthenticated, &identity)
	sessionLogger.Info().Str("user_id", string(identity.ID)).Msg("Logged in")
	m.notifier.Notify(notify.Success("Logged in successfully!"))
	return nil
}

func (m *Manager) login(ctx context.Context, email, password string) (model.Identity, error) {
	if err := m.identities.CreateSession(ctx, email, password); err != nil {
		return model.Identity{}, err
	}
	return m.identities.GetCurrentIdentity(ctx)
}

// Register creates an account and logs into it. Login is not attempted when
// account creation fails.
func (m *Manager) Register(ctx context.Context, email, password, displayName string) error {
	if err := validateCredentials(email, password); err != nil {
		err = apperr.Wrap(apperr.KindValidation, "register", err)
		m.notifier.Notify(notify.Failure(err, "Registration failed. Please try again."))
		return err
	}

	if _, err := m.identities.CreateAccount(ctx, email, password, displayName); err != nil {
		err = apperr.Classify("register", err)
		sessionLogger.Info().Err(err).Str("email", email).Msg("Account creation failed")
		m.notifier.Notify(notify.Failure(err, "Registration failed. Please try again."))
		return err
	}

	if err := m.Login(ctx, email, password); err != nil {
		return err
	}

	m.notifier.Notify(notify.Success("Registration successful!"))
	return nil
}

// Logout destroys the remote session. Local state becomes Anonymous even
// when the provider fails; the failure is reported, not retried.
func (m *Manager) Logout(ctx context.Context) error {
	if m.State().Status != StatusAuthenticated {
		return apperr.New(apperr.KindPermission, "logout", "not logged in")
	}

	err := m.identities.DestroySession(ctx)
	m.set(StatusAnonymous, nil)

	if err != nil {
		err = apperr.Classify("logout", err)
		sessionLogger.Warn().Err(err).Msg("Destroy session failed, local session cleared")
		m.notifier.Notify(notify.Failure(err, "Logout failed."))
		return err
	}

	m.notifier.Notify(notify.Success("Logged out successfully!"))
	return nil
}

// CanModify reports whether the current identity authored doc.
func (m *Manager) CanModify(doc model.Document) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status == StatusAuthenticated && m.identity != nil && m.identity.ID == doc.AuthorID
}

// Current returns the authenticated identity, if any.
func (m *Manager) Current() (model.Identity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status != StatusAuthenticated || m.identity == nil {
		return model.Identity{}, false
	}
	return *m.identity, true
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := State{Status: m.status}
	if m.identity != nil {
		id := *m.identity
		s.Identity = &id
	}
	return s
}

func (m *Manager) set(status Status, identity *model.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
	m.identity = identity
}

var (
	errPasswordRequired = errors.New("password is required")
	errInvalidEmail     = errors.New("email address is invalid")
)

func validateCredentials(email, password string) error {
	if password == "" {
		return errPasswordRequired
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errInvalidEmail
	}
	return nil
}
