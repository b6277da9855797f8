// AngelaMos | 2026
// memory_test.go

package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/member-portal/internal/core"
)

func newUser(id, email string) *Identity {
	return &Identity{
		ID:            id,
		Kind:          KindUser,
		Email:         email,
		Name:          "User " + id,
		PasswordHash:  strPtr("digest"),
		EmailVerified: true,
	}
}

func newPendingMember(id, email, invite string) *Identity {
	now := time.Now()
	return &Identity{
		ID:              id,
		Kind:            KindMember,
		Email:           email,
		Designation:     RoleMember,
		Status:          StatusPending,
		InvitationToken: strPtr(invite),
		InvitedAt:       &now,
	}
}

func TestMemoryRepositoryCreateFind(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	require.NoError(t, repo.Create(ctx, newUser("u1", "a@x.com")))
	require.NoError(t, repo.Create(ctx, newPendingMember("m1", "a@x.com", "t1")))

	err := repo.Create(ctx, newUser("u2", "a@x.com"))
	require.True(t, errors.Is(err, core.ErrDuplicateKey))

	found, err := repo.FindByEmail(ctx, KindUser, "  a@x.com ")
	require.NoError(t, err)
	assert.Equal(t, "u1", found.ID)

	_, err = repo.FindByEmail(ctx, KindUser, "A@X.COM")
	require.True(t, errors.Is(err, core.ErrNotFound), "emails match as stored")

	member, err := repo.FindByInvitationToken(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "m1", member.ID)

	_, err = repo.FindByInvitationToken(ctx, "")
	require.True(t, errors.Is(err, core.ErrNotFound))

	anyFound, err := repo.FindAnyByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, KindMember, anyFound.Kind)

	_, err = repo.FindAnyByID(ctx, "nope")
	require.True(t, errors.Is(err, core.ErrNotFound))
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Create(ctx, newUser("u1", "a@x.com")))

	found, err := repo.FindByID(ctx, KindUser, "u1")
	require.NoError(t, err)
	found.Name = "changed"

	again, err := repo.FindByID(ctx, KindUser, "u1")
	require.NoError(t, err)
	assert.Equal(t, "User u1", again.Name)
}

func TestMemoryRepositoryResetHashLookup(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	u := newUser("u1", "a@x.com")
	u.Reset = &ResetToken{Hash: "abc", ExpiresAt: time.Now().Add(time.Minute)}
	require.NoError(t, repo.Create(ctx, u))

	found, err := repo.FindByResetHash(ctx, KindUser, "abc")
	require.NoError(t, err)
	assert.Equal(t, "u1", found.ID)

	_, err = repo.FindByResetHash(ctx, KindMember, "abc")
	require.True(t, errors.Is(err, core.ErrNotFound))
}

func TestMemoryRepositoryInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Create(ctx, newUser("u1", "a@x.com")))

	boom := errors.New("boom")
	err := repo.InTx(ctx, func(tx Repository) error {
		u, err := tx.FindByID(ctx, KindUser, "u1")
		if err != nil {
			return err
		}
		u.Name = "inside"
		if err := tx.Save(ctx, u); err != nil {
			return err
		}
		if err := tx.Create(ctx, newUser("u2", "b@x.com")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	u, err := repo.FindByID(ctx, KindUser, "u1")
	require.NoError(t, err)
	assert.Equal(t, "User u1", u.Name)

	_, err = repo.FindByID(ctx, KindUser, "u2")
	require.True(t, errors.Is(err, core.ErrNotFound))
}

func TestMemoryRepositoryInTxSerializesTransitions(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	u := newUser("u1", "a@x.com")
	u.Reset = &ResetToken{Hash: "once"}
	require.NoError(t, repo.Create(ctx, u))

	var succeeded atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.InTx(ctx, func(tx Repository) error {
				found, err := tx.FindByResetHash(ctx, KindUser, "once")
				if err != nil {
					return err
				}
				found.SetPassword("new")
				return tx.Save(ctx, found)
			})
			if err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
}

func TestMemoryRepositorySaveAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	err := repo.Save(ctx, newUser("ghost", "g@x.com"))
	require.True(t, errors.Is(err, core.ErrNotFound))

	require.NoError(t, repo.Create(ctx, newUser("u1", "a@x.com")))
	require.NoError(t, repo.Create(ctx, newUser("u2", "b@x.com")))

	taken := newUser("u2", "a@x.com")
	require.True(t, errors.Is(repo.Save(ctx, taken), core.ErrDuplicateKey))

	invalid := newPendingMember("m1", "m@x.com", "t")
	invalid.Status = StatusActive
	require.True(t, errors.Is(repo.Create(ctx, invalid), core.ErrInvalidInput))

	u1, err := repo.FindByID(ctx, KindUser, "u1")
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, u1))
	require.True(t, errors.Is(repo.Delete(ctx, u1), core.ErrNotFound))
}

func TestMemoryRepositoryList(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 25 {
		u := newUser(fmt.Sprintf("u%02d", i), fmt.Sprintf("user%02d@x.com", i))
		u.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, u))
	}

	page, total, err := repo.List(ctx, KindUser, ListParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	require.Len(t, page, 10)
	assert.Equal(t, "u24", page[0].ID, "newest first")

	last, _, err := repo.List(ctx, KindUser, ListParams{Page: 3, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, last, 5)

	found, total, err := repo.List(ctx, KindUser, ListParams{Search: "USER07"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "u07", found[0].ID)

	empty, total, err := repo.List(ctx, KindMember, ListParams{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, empty)
}
