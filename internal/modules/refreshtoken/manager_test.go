package refreshtoken

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"learnhub/internal/domain"
	"learnhub/internal/events"
	"learnhub/internal/pkg/hasher"
	"learnhub/internal/pkg/jwt"
)

type stubDirectory struct {
	mu    sync.Mutex
	users map[int64]*domain.User
	err   error
}

func (d *stubDirectory) FindByID(_ context.Context, id int64) (*domain.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	u, ok := d.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (d *stubDirectory) setRoles(id int64, roles domain.Roles) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[id].Roles = roles
}

// countingStore records how often each operation hits the underlying store.
type countingStore struct {
	*MemoryStore
	finds     atomic.Int32
	mutations atomic.Int32
	failNext  error
}

func (s *countingStore) FindByID(ctx context.Context, id string) (*domain.RefreshToken, error) {
	s.finds.Add(1)
	if s.failNext != nil {
		return nil, s.failNext
	}
	return s.MemoryStore.FindByID(ctx, id)
}

func (s *countingStore) RevokeByID(ctx context.Context, id string) (*domain.RefreshToken, error) {
	s.mutations.Add(1)
	return s.MemoryStore.RevokeByID(ctx, id)
}

func (s *countingStore) RevokeIfActive(ctx context.Context, id string) (bool, error) {
	s.mutations.Add(1)
	return s.MemoryStore.RevokeIfActive(ctx, id)
}

func (s *countingStore) RevokeAllForUser(ctx context.Context, userID int64) error {
	s.mutations.Add(1)
	return s.MemoryStore.RevokeAllForUser(ctx, userID)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

type fixture struct {
	store     *countingStore
	users     *stubDirectory
	access    *jwt.Service
	publisher *recordingPublisher
	manager   *Manager
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: &countingStore{MemoryStore: NewMemoryStore()},
		users: &stubDirectory{users: map[int64]*domain.User{
			1: {ID: 1, Email: "u1@school.org", Roles: domain.Roles{domain.RoleStudent}},
			2: {ID: 2, Email: "u2@school.org", Roles: domain.Roles{domain.RoleTutor}},
		}},
		access:    jwt.New("test-secret", 15*time.Minute, ""),
		publisher: &recordingPublisher{},
		now:       time.Now(),
	}
	f.manager = NewManager(f.store, hasher.NewBcrypt(bcrypt.MinCost), f.users, f.access, Config{
		Publisher: f.publisher,
		Now:       func() time.Time { return f.now },
	})
	return f
}

func tokenID(raw string) string {
	return raw[:strings.IndexByte(raw, '.')]
}

func TestIssue_PersistsFinalHashAtomically(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	raw, err := f.manager.Issue(ctx, 1, Metadata{UserAgent: "ua", IP: "10.0.0.1"}, 30)
	require.NoError(t, err)

	parts := strings.SplitN(raw, ".", 2)
	require.Len(t, parts, 2)
	assert.Len(t, parts[1], 64)

	rec, err := f.store.MemoryStore.FindByID(ctx, parts[0])
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.NotContains(t, rec.TokenHash, parts[1], "raw secret must not be stored")
	match, err := hasher.NewBcrypt(bcrypt.MinCost).Compare(ctx, raw, rec.TokenHash)
	require.NoError(t, err)
	assert.True(t, match, "stored hash must match the returned token on first read")
	assert.False(t, rec.Revoked)
	assert.Equal(t, "ua", rec.UserAgent)
	assert.Equal(t, "10.0.0.1", rec.IP)
	assert.WithinDuration(t, f.now.Add(30*24*time.Hour), rec.ExpiresAt, time.Second)
}

func TestIssue_DefaultTTL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	raw, err := f.manager.Issue(ctx, 1, Metadata{}, 0)
	require.NoError(t, err)

	rec, err := f.store.MemoryStore.FindByID(ctx, tokenID(raw))
	require.NoError(t, err)
	assert.WithinDuration(t, f.now.Add(DefaultTTLDays*24*time.Hour), rec.ExpiresAt, time.Second)
}

func TestValidate_FreshToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	raw, err := f.manager.Issue(ctx, 1, Metadata{}, 30)
	require.NoError(t, err)

	rec, err := f.manager.Validate(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.UserID)
	assert.Equal(t, tokenID(raw), rec.ID)
}

func TestValidate_MalformedSkipsStore(t *testing.T) {
	f := newFixture(t)

	for _, raw := range []string{"", "no-separator-here"} {
		_, err := f.manager.Validate(context.Background(), raw)
		assert.ErrorIs(t, err, ErrMalformedToken, raw)
		assert.ErrorIs(t, err, ErrInvalidToken, raw)
	}
	assert.Zero(t, f.store.finds.Load())
}

func TestValidate_EmptyPartsAreLookedUp(t *testing.T) {
	f := newFixture(t)

	for _, raw := range []string{".secret", "id.", strings.Repeat("a", 100) + ".secret"} {
		_, err := f.manager.Validate(context.Background(), raw)
		assert.ErrorIs(t, err, ErrTokenNotFound, raw)
		assert.NotErrorIs(t, err, ErrMalformedToken, raw)
	}
	assert.Equal(t, int32(3), f.store.finds.Load())
}

func TestValidate_UnknownIDDoesNotMutate(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Validate(context.Background(), "3f1c2a4e-0000-4000-8000-000000000000.deadbeef")
	assert.ErrorIs(t, err, ErrTokenNotFound)
	assert.Equal(t, int32(1), f.store.finds.Load())
	assert.Zero(t, f.store.mutations.Load())
}

func TestValidate_WrongSecret(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	raw, err := f.manager.Issue(ctx, 1, Metadata{}, 30)
	require.NoError(t, err)

	_, err = f.manager.Validate(ctx, tokenID(raw)+".ffffffffffffffffffffffffffffffff")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.NotErrorIs(t, err, ErrTokenRevoked)

	active, err := f.manager.ListActiveSessions(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, active, 1, "a mismatch must not revoke anything")
}

func TestValidate_ExpiredIsNotRevoked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	raw, err := f.manager.Issue(ctx, 1, Metadata{}, 1)
	require.NoError(t, err)

	f.now = f.now.Add(24 * time.Hour)

	_, err = f.manager.Validate(ctx, raw)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NotErrorIs(t, err, ErrTokenRevoked)
}

func TestValidate_RevokedTriggersMassRevocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stolen, err := f.manager.Issue(ctx, 1, Metadata{}, 30)
	require.NoError(t, err)
	_, err = f.manager.Issue(ctx, 1, Metadata{UserAgent: "laptop"}, 30)
	require.NoError(t, err)
	other, err := f.manager.Issue(ctx, 2, Metadata{}, 30)
	require.NoError(t, err)

	_, err = f.manager.RevokeByID(ctx, tokenID(stolen))
	require.NoError(t, err)

	_, err = f.manager.Validate(ctx, stolen)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	active, err := f.manager.ListActiveSessions(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = f.manager.Validate(ctx, other)
	assert.NoError(t, err, "other users are unaffected")

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, events.TypeRefreshTokenReuse, f.publisher.events[0].Type)
}

func TestValidate_ExpiredAndRevokedStillRevokesAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old, err := f.manager.Issue(ctx, 1, Metadata{}, 1)
	require.NoError(t, err)
	_, err = f.manager.RevokeByID(ctx, tokenID(old))
	require.NoError(t, err)

	f.now = f.now.Add(48 * time.Hour)
	_, err = f.manager.Issue(ctx, 1, Metadata{}, 30)
	require.NoError(t, err)

	_, err = f.manager.Validate(ctx, old)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	active, err := f.manager.ListActiveSessions(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestValidate_StoreFailure(t *testing.T) {
	f := newFixture(t)
	f.store.failNext = errors.New("connection reset")

	_, err := f.manager.Validate(context.Background(), "abc.def")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}

func TestRotate_SingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	raw, err := f.manager.Issue(ctx, 1, Metadata{}, 30)
	require.NoError(t, err)

	pair, err := f.manager.Rotate(ctx, raw, Metadata{UserAgent: "phone"})
	require.NoError(t, err)
	assert.NotEqual(t, tokenID(raw), tokenID(pair.RefreshToken))

	old, err := f.store.MemoryStore.FindByID(ctx, tokenID(raw))
	require.NoError(t, err)
	assert.True(t, old.Revoked)

	_, err = f.manager.Validate(ctx, raw)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	active, err := f.manager.ListActiveSessions(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, active, "replaying a rotated token kills every session")
}

func TestRotate_UsesCurrentRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	raw, err := f.manager.Issue(ctx, 1, Metadata{}, 30)
	require.NoError(t, err)

	f.users.setRoles(1, domain.Roles{domain.RoleStudent, domain.RoleAdmin})

	pair, err := f.manager.Rotate(ctx, raw, Metadata{})
	require.NoError(t, err)

	claims, err := f.access.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "1", claims.Subject)
	assert.Equal(t, "u1@school.org", claims.Email)
	assert.ElementsMatch(t, []string{"student", "admin"}, claims.Roles)
}

func TestRotate_UserNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	raw, err := f.manager.Issue(ctx, 99, Metadata{}, 30)
	require.NoError(t, err)

	_, err = f.manager.Rotate(ctx, raw, Metadata{})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRotate_DirectoryFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	raw, err := f.manager.Issue(ctx, 1, Metadata{}, 30)
	require.NoError(t, err)

	f.users.err = errors.New("db down")
	_, err = f.manager.Rotate(ctx, raw, Metadata{})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestRotate_ConcurrentReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	raw, err := f.manager.Issue(ctx, 1, Metadata{}, 30)
	require.NoError(t, err)
	bystander, err := f.manager.Issue(ctx, 1, Metadata{UserAgent: "tablet"}, 30)
	require.NoError(t, err)

	const callers = 2
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		revoked   atomic.Int32
		start     = make(chan struct{})
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.manager.Rotate(ctx, raw, Metadata{})
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrTokenRevoked):
				revoked.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(1), revoked.Load())

	rec, err := f.store.MemoryStore.FindByID(ctx, tokenID(bystander))
	require.NoError(t, err)
	assert.True(t, rec.Revoked, "the losing replay revokes the user's other sessions")
}

func TestRevokeByID_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	raw, err := f.manager.Issue(ctx, 1, Metadata{}, 30)
	require.NoError(t, err)

	msg1, err := f.manager.RevokeByID(ctx, tokenID(raw))
	require.NoError(t, err)
	msg2, err := f.manager.RevokeByID(ctx, tokenID(raw))
	require.NoError(t, err)
	msg3, err := f.manager.RevokeByID(ctx, "does-not-exist")
	require.NoError(t, err)

	assert.Equal(t, RevokedMessage, msg1)
	assert.Equal(t, msg1, msg2)
	assert.Equal(t, msg1, msg3)
}

func TestRevokeAllForUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.manager.Issue(ctx, 1, Metadata{}, 30)
		require.NoError(t, err)
	}
	require.NoError(t, f.manager.RevokeAllForUser(ctx, 1))

	active, err := f.manager.ListActiveSessions(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestListActiveSessions_IncludesExpiredUnrevoked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.Issue(ctx, 1, Metadata{UserAgent: "old"}, 1)
	require.NoError(t, err)
	f.now = f.now.Add(72 * time.Hour)
	_, err = f.manager.Issue(ctx, 1, Metadata{UserAgent: "new"}, 30)
	require.NoError(t, err)

	active, err := f.manager.ListActiveSessions(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}
