// Package auth guards owner-only operations with a single passphrase and
// hands out visitor session tokens.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/folio/internal/storage"
)

var (
	// ErrInvalidPassword is returned for a wrong or blank passphrase.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrInvalidRecoveryCode is returned when the recovery code does not match.
	ErrInvalidRecoveryCode = errors.New("invalid recovery code")
)

// storedPassword is what lands under storage.KeyAdminPassword.
type storedPassword struct {
	Digest string `json:"digest"`
}

// Authenticator verifies and rotates the owner passphrase. Only a SHA-256
// digest is persisted.
type Authenticator struct {
	store           storage.Store
	defaultPassword string
	recoveryCode    string
	logger          *zap.Logger

	mu     sync.RWMutex
	digest string
}

// NewAuthenticator creates an Authenticator. defaultPassword applies until
// the owner changes it and again after a recovery.
func NewAuthenticator(store storage.Store, defaultPassword, recoveryCode string, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{
		store:           store,
		defaultPassword: defaultPassword,
		recoveryCode:    recoveryCode,
		logger:          logger,
	}
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// currentDigest returns the active digest, reading storage on first use.
func (a *Authenticator) currentDigest(ctx context.Context) string {
	a.mu.RLock()
	d := a.digest
	a.mu.RUnlock()
	if d != "" {
		return d
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.digest != "" {
		return a.digest
	}
	var sp storedPassword
	err := a.store.Get(ctx, storage.KeyAdminPassword, &sp)
	switch {
	case err == nil && sp.Digest != "":
		a.digest = sp.Digest
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		a.logger.Error("failed to read admin password, using default", zap.Error(err))
		fallthrough
	default:
		a.digest = hashPassword(a.defaultPassword)
	}
	return a.digest
}

// Verify reports whether password is the owner passphrase.
func (a *Authenticator) Verify(ctx context.Context, password string) bool {
	if password == "" {
		return false
	}
	want := a.currentDigest(ctx)
	got := hashPassword(password)
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

// Change replaces the passphrase. Blank passphrases are rejected.
func (a *Authenticator) Change(ctx context.Context, password string) error {
	if strings.TrimSpace(password) == "" {
		return ErrInvalidPassword
	}
	return a.set(ctx, hashPassword(password))
}

// Recover resets the passphrase to the default when code matches the
// recovery code, ignoring case and surrounding space.
func (a *Authenticator) Recover(ctx context.Context, code string) error {
	code = strings.ToLower(strings.TrimSpace(code))
	want := strings.ToLower(a.recoveryCode)
	if want == "" || subtle.ConstantTimeCompare([]byte(code), []byte(want)) != 1 {
		return ErrInvalidRecoveryCode
	}
	if err := a.set(ctx, hashPassword(a.defaultPassword)); err != nil {
		return err
	}
	a.logger.Warn("admin password reset via recovery code")
	return nil
}

func (a *Authenticator) set(ctx context.Context, digest string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.store.Put(ctx, storage.KeyAdminPassword, storedPassword{Digest: digest}); err != nil {
		return fmt.Errorf("persist admin password: %w", err)
	}
	a.digest = digest
	return nil
}
