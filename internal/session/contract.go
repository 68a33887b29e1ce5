// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/alexedwards/scs/v2"
)

// Session keys.
const (
	KeyUserID       = "user_id"
	KeyUsername     = "username"
	KeyRole         = "role"
	KeyLastActivity = "last_activity"
	KeyCSRFToken    = "csrf_token"
)

// csrfTokenBytes is the amount of randomness in a CSRF token.
const csrfTokenBytes = 32

var (
	// ErrNoSession is returned when the session holds no identity.
	ErrNoSession = errors.New("session: not authenticated")
	// ErrExpired is returned when the idle timeout has elapsed.
	ErrExpired = errors.New("session: idle timeout exceeded")
)

// Identity is the authenticated user stored in a session.
type Identity struct {
	UserID   int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Manager implements the session contract on top of scs.
type Manager struct {
	sm          *scs.SessionManager
	idleTimeout time.Duration
	now         func() time.Time
}

// NewManager wraps sm. A nil now uses time.Now.
func NewManager(sm *scs.SessionManager, idleTimeout time.Duration, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{sm: sm, idleTimeout: idleTimeout, now: now}
}

// SessionManager returns the underlying scs manager for middleware wiring.
func (m *Manager) SessionManager() *scs.SessionManager {
	return m.sm
}

// Issue starts an authenticated session for id. The session token is
// renewed to prevent fixation and a fresh CSRF token is generated and
// returned.
func (m *Manager) Issue(ctx context.Context, id Identity) (string, error) {
	if err := m.sm.RenewToken(ctx); err != nil {
		return "", fmt.Errorf("renewing session token: %w", err)
	}

	m.sm.Put(ctx, KeyUserID, id.UserID)
	m.sm.Put(ctx, KeyUsername, id.Username)
	m.sm.Put(ctx, KeyRole, id.Role)
	m.sm.Put(ctx, KeyLastActivity, m.now().Unix())

	return m.rotateCSRF(ctx)
}

// Current returns the identity held by the session without touching the
// idle timer. It reports ErrExpired when the session has been idle too
// long; the caller decides whether to destroy it.
func (m *Manager) Current(ctx context.Context) (Identity, error) {
	userID := m.sm.GetInt64(ctx, KeyUserID)
	if userID == 0 {
		return Identity{}, ErrNoSession
	}

	last := m.sm.GetInt64(ctx, KeyLastActivity)
	if last == 0 || m.now().Sub(time.Unix(last, 0)) > m.idleTimeout {
		return Identity{}, ErrExpired
	}

	return Identity{
		UserID:   userID,
		Username: m.sm.GetString(ctx, KeyUsername),
		Role:     m.sm.GetString(ctx, KeyRole),
	}, nil
}

// Authenticate resolves the identity and bumps last_activity. An expired
// session is destroyed before ErrExpired is returned.
func (m *Manager) Authenticate(ctx context.Context) (Identity, error) {
	id, err := m.Current(ctx)
	if errors.Is(err, ErrExpired) {
		if derr := m.sm.Destroy(ctx); derr != nil {
			return Identity{}, fmt.Errorf("destroying expired session: %w", derr)
		}
		return Identity{}, ErrExpired
	}
	if err != nil {
		return Identity{}, err
	}

	m.sm.Put(ctx, KeyLastActivity, m.now().Unix())
	return id, nil
}

// CSRFToken returns the session's CSRF token, creating one when the
// session has none. created reports whether a new token was issued.
func (m *Manager) CSRFToken(ctx context.Context) (token string, created bool, err error) {
	if token = m.sm.GetString(ctx, KeyCSRFToken); token != "" {
		return token, false, nil
	}
	token, err = m.rotateCSRF(ctx)
	return token, err == nil, err
}

// ValidCSRF reports whether candidate matches the session's CSRF token.
// A session without a token never validates.
func (m *Manager) ValidCSRF(ctx context.Context, candidate string) bool {
	stored := m.sm.GetString(ctx, KeyCSRFToken)
	if stored == "" || candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1
}

// HasCSRFToken reports whether a token has been issued to this session.
func (m *Manager) HasCSRFToken(ctx context.Context) bool {
	return m.sm.Exists(ctx, KeyCSRFToken)
}

// Destroy ends the session.
func (m *Manager) Destroy(ctx context.Context) error {
	return m.sm.Destroy(ctx)
}

func (m *Manager) rotateCSRF(ctx context.Context) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	m.sm.Put(ctx, KeyCSRFToken, token)
	return token, nil
}

func newToken() (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating csrf token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
