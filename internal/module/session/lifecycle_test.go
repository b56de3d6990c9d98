package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uniedit/album/internal/utils/metrics"
)

type MockRefresher struct {
	mock.Mock
}

func (m *MockRefresher) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Tokens), args.Error(1)
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestLifecycle(t *testing.T, refresher Refresher) (*Lifecycle, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore(time.Hour)
	t.Cleanup(store.Close)

	lc := NewLifecycle(store, refresher, nil, nil)
	lc.now = func() time.Time { return fixedNow }
	return lc, store
}

func expiredSession() *Session {
	return &Session{
		ID:            "sess-1",
		Subject:       "user-1",
		IdentityToken: "id-old",
		AccessToken:   "access-old",
		RefreshToken:  "refresh-1",
		ExpiresAt:     fixedNow.Add(-time.Minute),
	}
}

func TestLifecycle_EnsureValid(t *testing.T) {
	ctx := context.Background()

	t.Run("valid token takes the fast path", func(t *testing.T) {
		refresher := new(MockRefresher)
		lc, _ := newTestLifecycle(t, refresher)

		s := expiredSession()
		s.ExpiresAt = fixedNow.Add(time.Minute)

		got, err := lc.EnsureValid(ctx, s)
		require.NoError(t, err)
		assert.Same(t, s, got)
		refresher.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
	})

	t.Run("token expiring exactly now is refreshed", func(t *testing.T) {
		refresher := new(MockRefresher)
		refresher.On("Refresh", mock.Anything, "refresh-1").Return(&Tokens{
			AccessToken:   "access-new",
			IdentityToken: "id-new",
			ExpiresIn:     time.Hour,
		}, nil).Once()
		lc, store := newTestLifecycle(t, refresher)

		s := expiredSession()
		s.ExpiresAt = fixedNow
		require.NoError(t, store.Put(ctx, s))

		got, err := lc.EnsureValid(ctx, s)
		require.NoError(t, err)
		assert.Equal(t, "access-new", got.AccessToken)
		refresher.AssertExpectations(t)
	})

	t.Run("missing refresh token fails without network calls", func(t *testing.T) {
		refresher := new(MockRefresher)
		lc, _ := newTestLifecycle(t, refresher)

		s := expiredSession()
		s.RefreshToken = ""

		_, err := lc.EnsureValid(ctx, s)
		assert.ErrorIs(t, err, ErrMissingRefreshToken)
		refresher.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
	})

	t.Run("missing access token forces refresh", func(t *testing.T) {
		refresher := new(MockRefresher)
		refresher.On("Refresh", mock.Anything, "refresh-1").Return(&Tokens{
			AccessToken:   "access-new",
			IdentityToken: "id-new",
			ExpiresIn:     time.Hour,
		}, nil).Once()
		lc, store := newTestLifecycle(t, refresher)

		s := expiredSession()
		s.AccessToken = ""
		s.ExpiresAt = fixedNow.Add(time.Hour)
		require.NoError(t, store.Put(ctx, s))

		got, err := lc.EnsureValid(ctx, s)
		require.NoError(t, err)
		assert.Equal(t, "access-new", got.AccessToken)
	})

	t.Run("expired token refreshes once and keeps the refresh token", func(t *testing.T) {
		refresher := new(MockRefresher)
		refresher.On("Refresh", mock.Anything, "refresh-1").Return(&Tokens{
			AccessToken:   "access-new",
			IdentityToken: "id-new",
			ExpiresIn:     time.Hour,
		}, nil).Once()
		lc, store := newTestLifecycle(t, refresher)

		s := expiredSession()
		require.NoError(t, store.Put(ctx, s))

		got, err := lc.EnsureValid(ctx, s)
		require.NoError(t, err)
		assert.Equal(t, "access-new", got.AccessToken)
		assert.Equal(t, "id-new", got.IdentityToken)
		assert.Equal(t, "refresh-1", got.RefreshToken)
		assert.Equal(t, fixedNow.Add(time.Hour), got.ExpiresAt)
		assert.True(t, got.ExpiresAt.After(fixedNow))
		assert.Equal(t, ErrorNone, got.Error)

		stored, err := store.Get(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, "access-new", stored.AccessToken)

		// The caller's value is left untouched.
		assert.Equal(t, "access-old", s.AccessToken)
		refresher.AssertNumberOfCalls(t, "Refresh", 1)
	})

	t.Run("rotated refresh token replaces the old one", func(t *testing.T) {
		refresher := new(MockRefresher)
		refresher.On("Refresh", mock.Anything, "refresh-1").Return(&Tokens{
			AccessToken:   "access-new",
			IdentityToken: "id-new",
			RefreshToken:  "refresh-2",
			ExpiresIn:     time.Hour,
		}, nil).Once()
		lc, store := newTestLifecycle(t, refresher)
		require.NoError(t, store.Put(ctx, expiredSession()))

		got, err := lc.EnsureValid(ctx, expiredSession())
		require.NoError(t, err)
		assert.Equal(t, "refresh-2", got.RefreshToken)
	})

	t.Run("rejected refresh flags the session", func(t *testing.T) {
		refresher := new(MockRefresher)
		refresher.On("Refresh", mock.Anything, "refresh-1").
			Return(nil, ErrRefreshRejected).Once()
		lc, store := newTestLifecycle(t, refresher)

		s := expiredSession()
		require.NoError(t, store.Put(ctx, s))

		got, err := lc.EnsureValid(ctx, s)
		require.ErrorIs(t, err, ErrRefreshFailed)
		require.NotNil(t, got)
		assert.Equal(t, ErrorRefreshFailed, got.Error)
		assert.Equal(t, "access-old", got.AccessToken)
		assert.Equal(t, "refresh-1", got.RefreshToken)

		stored, err := store.Get(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, ErrorRefreshFailed, stored.Error)

		// A flagged session never reaches the provider again.
		_, err = lc.EnsureValid(ctx, stored)
		assert.ErrorIs(t, err, ErrRefreshFailed)
		refresher.AssertNumberOfCalls(t, "Refresh", 1)
	})

	t.Run("malformed response flags the session", func(t *testing.T) {
		refresher := new(MockRefresher)
		refresher.On("Refresh", mock.Anything, "refresh-1").
			Return(nil, ErrMalformedTokenResponse).Once()
		lc, store := newTestLifecycle(t, refresher)
		require.NoError(t, store.Put(ctx, expiredSession()))

		got, err := lc.EnsureValid(ctx, expiredSession())
		assert.ErrorIs(t, err, ErrRefreshFailed)
		assert.Equal(t, ErrorRefreshFailed, got.Error)
	})

	t.Run("transport failure leaves the session unflagged", func(t *testing.T) {
		refresher := new(MockRefresher)
		refresher.On("Refresh", mock.Anything, "refresh-1").
			Return(nil, ErrTokenEndpoint).Once()
		lc, store := newTestLifecycle(t, refresher)
		require.NoError(t, store.Put(ctx, expiredSession()))

		_, err := lc.EnsureValid(ctx, expiredSession())
		assert.ErrorIs(t, err, ErrTokenEndpoint)
		assert.NotErrorIs(t, err, ErrRefreshFailed)

		stored, err := store.Get(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, ErrorNone, stored.Error)
	})

	t.Run("signed out session is not refreshed", func(t *testing.T) {
		refresher := new(MockRefresher)
		lc, _ := newTestLifecycle(t, refresher)

		_, err := lc.EnsureValid(ctx, expiredSession())
		assert.ErrorIs(t, err, ErrNotFound)
		refresher.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
	})

	t.Run("nil session", func(t *testing.T) {
		lc, _ := newTestLifecycle(t, new(MockRefresher))
		_, err := lc.EnsureValid(ctx, nil)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

type gatedRefresher struct {
	calls   atomic.Int32
	release chan struct{}
}

func (g *gatedRefresher) Refresh(_ context.Context, _ string) (*Tokens, error) {
	g.calls.Add(1)
	<-g.release
	return &Tokens{AccessToken: "access-new", IdentityToken: "id-new", ExpiresIn: time.Hour}, nil
}

func TestLifecycle_SingleFlight(t *testing.T) {
	ctx := context.Background()
	refresher := &gatedRefresher{release: make(chan struct{})}
	lc, store := newTestLifecycle(t, refresher)
	require.NoError(t, store.Put(ctx, expiredSession()))

	const callers = 16
	var wg sync.WaitGroup
	results := make([]*Session, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = lc.EnsureValid(ctx, expiredSession())
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(refresher.release)
	wg.Wait()

	assert.Equal(t, int32(1), refresher.calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "access-new", results[i].AccessToken)
	}
}

func TestLifecycle_CallerCancellation(t *testing.T) {
	refresher := &gatedRefresher{release: make(chan struct{})}
	lc, store := newTestLifecycle(t, refresher)
	require.NoError(t, store.Put(context.Background(), expiredSession()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := lc.EnsureValid(ctx, expiredSession())
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	err := <-done
	assert.True(t, errors.Is(err, context.Canceled))

	// The shared refresh still completes for later callers.
	close(refresher.release)
	require.Eventually(t, func() bool {
		s, err := store.Get(context.Background(), "sess-1")
		return err == nil && s.AccessToken == "access-new"
	}, time.Second, 10*time.Millisecond)
}

func TestLifecycle_Metrics(t *testing.T) {
	ctx := context.Background()
	m := metrics.New("session_test", prometheus.NewRegistry())

	refresher := new(MockRefresher)
	refresher.On("Refresh", mock.Anything, "refresh-1").Return(&Tokens{
		AccessToken: "a", IdentityToken: "i", ExpiresIn: time.Minute,
	}, nil).Once()

	store := NewMemoryStore(time.Hour)
	defer store.Close()
	lc := NewLifecycle(store, refresher, m, nil)
	lc.now = func() time.Time { return fixedNow }
	require.NoError(t, store.Put(ctx, expiredSession()))

	_, err := lc.EnsureValid(ctx, expiredSession())
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TokenRefreshTotal.WithLabelValues("success")))
}

func TestLifecycle_SignOutDuringRefresh(t *testing.T) {
	ctx := context.Background()
	refresher := &gatedRefresher{release: make(chan struct{})}
	lc, store := newTestLifecycle(t, refresher)
	require.NoError(t, store.Put(ctx, expiredSession()))

	type result struct {
		s   *Session
		err error
	}
	done := make(chan result, 1)
	go func() {
		s, err := lc.EnsureValid(ctx, expiredSession())
		done <- result{s, err}
	}()

	require.Eventually(t, func() bool { return refresher.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, store.Delete(ctx, "sess-1"))
	close(refresher.release)

	res := <-done
	assert.ErrorIs(t, res.err, ErrNotFound)
	assert.NotEqual(t, "access-new", res.s.AccessToken)

	_, err := store.Get(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound, "signed-out session must stay deleted")
}

func TestLifecycle_SignOutBeforeRejectedRefreshIsFlagged(t *testing.T) {
	ctx := context.Background()
	refresher := new(MockRefresher)
	lc, store := newTestLifecycle(t, refresher)
	require.NoError(t, store.Put(ctx, expiredSession()))

	refresher.On("Refresh", mock.Anything, "refresh-1").
		Run(func(mock.Arguments) { _ = store.Delete(ctx, "sess-1") }).
		Return(nil, ErrRefreshRejected).Once()

	_, err := lc.EnsureValid(ctx, expiredSession())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
