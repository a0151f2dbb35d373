package session

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"parcelview/internal/dataset"
	"parcelview/internal/errors"
	"parcelview/internal/types"
	"parcelview/internal/viewstate"
)

type mockStore struct{ mock.Mock }

func (m *mockStore) Get(ctx context.Context, id string) (*Session, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*Session)
	return s, args.Error(1)
}

func (m *mockStore) Put(ctx context.Context, s *Session) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func fixture(key string) *dataset.Dataset {
	return &dataset.Dataset{Key: key, Parcels: []types.Parcel{
		{ParcelID: "A", Centroid: orb.Point{-97, 32}},
		{ParcelID: "B", Centroid: orb.Point{-98, 33}},
	}}
}

func TestGate(t *testing.T) {
	g := NewGate("surveyor", "s3cret")

	tests := []struct {
		name, user, pass string
		ok               bool
	}{
		{"match", "surveyor", "s3cret", true},
		{"wrong password", "surveyor", "nope", false},
		{"wrong user", "admin", "s3cret", false},
		{"prefix", "survey", "s3cre", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Check(tt.user, tt.pass)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, errors.ErrCodeAuth))
			}
		})
	}

	assert.Error(t, NewGate("", "").Check("", ""), "an unconfigured gate never opens")
}

func TestLoginLogout(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)
	m := NewManager(NewGate("u", "p"), store, viewstate.DefaultLevels())

	_, err := m.Login(ctx, "u", "wrong")
	assert.True(t, errors.Is(err, errors.ErrCodeAuth))
	assert.Equal(t, 0, store.Len())

	s, err := m.Login(ctx, "u", "p")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)

	got, err := m.Lookup(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "u", got.User)

	ds := fixture("k1")
	_, _, err = m.Select(ctx, got, ds, 1)
	require.NoError(t, err)

	require.NoError(t, m.Logout(ctx, s.ID))
	_, err = m.Lookup(ctx, s.ID)
	assert.True(t, errors.Is(err, errors.ErrCodeSessionNotFound))

	// A new login starts from the overview again.
	s2, err := m.Login(ctx, "u", "p")
	require.NoError(t, err)
	v, err := m.View(ctx, s2, ds)
	require.NoError(t, err)
	assert.False(t, v.IsSelected())
	assert.Equal(t, viewstate.OverviewZoom, v.Zoom)
}

func TestSelectPersistsOnlyWhenMoved(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	m := NewManager(NewGate("u", "p"), store, viewstate.DefaultLevels())
	ds := fixture("k1")
	s := &Session{ID: "abc"}

	store.On("Put", ctx, s).Return(nil)

	v, moved, err := m.Select(ctx, s, ds, 1)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, viewstate.DetailZoom, v.Zoom)
	// One Put to initialize the view, one for the move.
	store.AssertNumberOfCalls(t, "Put", 2)

	_, moved, err = m.Select(ctx, s, ds, 1)
	require.NoError(t, err)
	assert.False(t, moved)
	store.AssertNumberOfCalls(t, "Put", 2)
}

func TestViewResetsOnDatasetChange(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewGate("u", "p"), NewMemoryStore(0), viewstate.DefaultLevels())
	s := &Session{ID: "abc"}

	_, _, err := m.Select(ctx, s, fixture("k1"), 1)
	require.NoError(t, err)
	require.True(t, s.View.IsSelected())

	v, err := m.View(ctx, s, fixture("k2"))
	require.NoError(t, err)
	assert.False(t, v.IsSelected())
	assert.Equal(t, "k2", s.DatasetKey)
}

func TestStoreFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	store.On("Put", ctx, mock.Anything).Return(stderrors.New("connection refused"))
	m := NewManager(NewGate("u", "p"), store, viewstate.DefaultLevels())

	_, err := m.Login(ctx, "u", "p")
	assert.True(t, errors.Is(err, errors.ErrCodeInternal))
	store.AssertExpectations(t)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore(time.Minute)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Put(ctx, &Session{ID: "a"}))
	_, err := store.Get(ctx, "a")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = store.Get(ctx, "a")
	assert.True(t, errors.Is(err, errors.ErrCodeSessionNotFound))
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	v := viewstate.State{Zoom: 13}
	s := &Session{ID: "a", View: &v}
	require.NoError(t, store.Put(ctx, s))

	v.Zoom = 18
	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 13, got.View.Zoom)
}
