// Package session gates access behind the configured credentials and owns
// each logged-in user's ViewState.
//
// A session is created by a successful login and destroyed by logout. The
// dataset cache is process-wide and survives logout; the ViewState does not.
package session

import (
	"context"
	"crypto/subtle"
	"strconv"
	"time"

	"github.com/google/uuid"

	"parcelview/internal/dataset"
	"parcelview/internal/errors"
	"parcelview/internal/logging"
	"parcelview/internal/metrics"
	"parcelview/internal/viewstate"
)

// Session is one logged-in user.
type Session struct {
	ID         string           `json:"id"`
	User       string           `json:"user"`
	CreatedAt  time.Time        `json:"created_at"`
	DatasetKey string           `json:"dataset_key,omitempty"`
	View       *viewstate.State `json:"view,omitempty"`
}

// Store persists sessions. Get returns an ErrCodeSessionNotFound error for
// unknown or expired ids.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// Gate compares submitted credentials against the configured pair.
type Gate struct {
	username []byte
	password []byte
}

// NewGate returns a Gate for the given credentials.
func NewGate(username, password string) *Gate {
	return &Gate{username: []byte(username), password: []byte(password)}
}

// Check returns an ErrCodeAuth error unless both values match. Both
// comparisons always run.
func (g *Gate) Check(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), g.username)
	passOK := subtle.ConstantTimeCompare([]byte(password), g.password)
	if userOK&passOK != 1 || len(g.username) == 0 {
		return errors.New(errors.ErrCodeAuth, "user not found or password incorrect")
	}
	return nil
}

// Manager ties the gate, the store and view-state initialization together.
type Manager struct {
	gate   *Gate
	store  Store
	levels viewstate.Levels
}

// NewManager returns a Manager. levels are the zoom levels new views start
// with.
func NewManager(gate *Gate, store Store, levels viewstate.Levels) *Manager {
	return &Manager{gate: gate, store: store, levels: levels}
}

// Login checks the credentials and opens a session.
func (m *Manager) Login(ctx context.Context, username, password string) (*Session, error) {
	logger := logging.FromContext(ctx)
	if err := m.gate.Check(username, password); err != nil {
		metrics.LoginsTotal.WithLabelValues("denied").Inc()
		logger.Warn("login denied", "user", username)
		return nil, err
	}
	s := &Session{
		ID:        uuid.NewString(),
		User:      username,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.Put(ctx, s); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "store session")
	}
	metrics.LoginsTotal.WithLabelValues("ok").Inc()
	logger.Info("login", "user", username)
	return s, nil
}

// Logout discards the session and its view. Unknown ids are ignored.
func (m *Manager) Logout(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "delete session")
	}
	logging.FromContext(ctx).Info("logout")
	return nil
}

// Lookup returns the session for id.
func (m *Manager) Lookup(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, errors.New(errors.ErrCodeSessionNotFound, "no session")
	}
	return m.store.Get(ctx, id)
}

// View returns the session's view of ds, starting a fresh Unselected view
// when the session has none or last saw a different dataset.
func (m *Manager) View(ctx context.Context, s *Session, ds *dataset.Dataset) (viewstate.State, error) {
	if s.View != nil && s.DatasetKey == ds.Key {
		return *s.View, nil
	}
	v := viewstate.NewWithLevels(ds, m.levels)
	s.View = &v
	s.DatasetKey = ds.Key
	if err := m.store.Put(ctx, s); err != nil {
		return v, errors.Wrap(errors.ErrCodeInternal, err, "store session")
	}
	return v, nil
}

// Select applies a row selection to the session's view and persists it when
// the view moved. The row must index ds.
func (m *Manager) Select(ctx context.Context, s *Session, ds *dataset.Dataset, row int) (viewstate.State, bool, error) {
	v, err := m.View(ctx, s, ds)
	if err != nil {
		return v, false, err
	}
	moved := v.Select(ds, row)
	metrics.SelectionsTotal.WithLabelValues(strconv.FormatBool(moved)).Inc()
	if !moved {
		return v, false, nil
	}
	s.View = &v
	if err := m.store.Put(ctx, s); err != nil {
		return v, true, errors.Wrap(errors.ErrCodeInternal, err, "store session")
	}
	return v, true, nil
}
