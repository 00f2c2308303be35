package credential

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/getkayan/accountguard/core/domain"
	"github.com/getkayan/accountguard/core/kv"
	"github.com/getkayan/accountguard/core/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *kv.MemoryStore) {
	t.Helper()
	mem := kv.NewMemoryStore()
	return NewStore(mem, NewBcryptHasher(bcrypt.MinCost)), mem
}

func TestRegister(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	u, err := s.Register(ctx, " Ana ", " a@b.com ", "Str0ng!Pass", t0)
	require.NoError(t, err)

	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "a@b.com", u.Email)
	assert.Equal(t, "Ana", u.Name)
	assert.False(t, u.EmailVerified)
	assert.Equal(t, t0, u.RegisteredAt)
	assert.NotEqual(t, "Str0ng!Pass", u.PasswordHash)

	found, err := s.FindByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)
}

func TestRegisterRejectsDuplicatesAndWeakPasswords(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "Ana", "a@b.com", "Str0ng!Pass", t0)
	require.NoError(t, err)

	_, err = s.Register(ctx, "Other", "a@b.com", "An0ther!Pass", t0)
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)

	_, err = s.Register(ctx, "Weak", "weak@b.com", "weak", t0)
	assert.ErrorIs(t, err, domain.ErrWeakPassword)
	var v *policy.Violation
	require.True(t, errors.As(err, &v))
	assert.Equal(t, policy.RuleMinLength, v.Rule)

	_, err = s.Register(ctx, "Nobody", "  ", "Str0ng!Pass", t0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRegisterIsCaseSensitive(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "Ana", "a@b.com", "Str0ng!Pass", t0)
	require.NoError(t, err)
	_, err = s.Register(ctx, "Ana", "A@b.com", "Str0ng!Pass", t0)
	assert.NoError(t, err)
}

func TestAuthenticate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "Ana", "a@b.com", "Str0ng!Pass", t0)
	require.NoError(t, err)

	u, err := s.Authenticate(ctx, "a@b.com", "Str0ng!Pass")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", u.Email)

	_, err = s.Authenticate(ctx, "a@b.com", "Wr0ng!Pass")
	assert.ErrorIs(t, err, domain.ErrWrongPassword)

	_, err = s.Authenticate(ctx, "ghost@b.com", "Str0ng!Pass")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestUpdatePassword(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "Ana", "a@b.com", "Str0ng!Pass", t0)
	require.NoError(t, err)

	later := t0.Add(time.Hour)
	require.NoError(t, s.UpdatePassword(ctx, "a@b.com", "N3w!Password", later))

	_, err = s.Authenticate(ctx, "a@b.com", "Str0ng!Pass")
	assert.ErrorIs(t, err, domain.ErrWrongPassword)
	u, err := s.Authenticate(ctx, "a@b.com", "N3w!Password")
	require.NoError(t, err)
	assert.True(t, later.Equal(u.UpdatedAt))

	assert.ErrorIs(t, s.UpdatePassword(ctx, "ghost@b.com", "N3w!Password", later), domain.ErrNotFound)
	assert.ErrorIs(t, s.UpdatePassword(ctx, "a@b.com", "nope", later), domain.ErrWeakPassword)
}

func TestMarkVerifiedIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "Ana", "a@b.com", "Str0ng!Pass", t0)
	require.NoError(t, err)

	first := t0.Add(time.Minute)
	u, err := s.MarkVerified(ctx, "a@b.com", first)
	require.NoError(t, err)
	assert.True(t, u.EmailVerified)

	u, err = s.MarkVerified(ctx, "a@b.com", first.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, u.VerifiedAt)
	assert.True(t, first.Equal(*u.VerifiedAt))

	_, err = s.MarkVerified(ctx, "ghost@b.com", first)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCorruptRecordReadsAsAbsent(t *testing.T) {
	s, mem := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, mem.Set(ctx, kv.TableUsers, "bad@b.com", []byte("garbage")))

	_, err := s.FindByEmail(ctx, "bad@b.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.Authenticate(ctx, "bad@b.com", "anything")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestBcryptHasherCostClamp(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(0).Cost)
	assert.Equal(t, bcrypt.MinCost, NewBcryptHasher(1).Cost)
	assert.Equal(t, bcrypt.MaxCost, NewBcryptHasher(99).Cost)

	h := NewBcryptHasher(bcrypt.MinCost)
	hash, err := h.Hash("Str0ng!Pass")
	require.NoError(t, err)
	assert.True(t, h.Compare("Str0ng!Pass", hash))
	assert.False(t, h.Compare("other", hash))
}

func TestArgon2Hasher(t *testing.T) {
	h := &Argon2Hasher{Time: 1, Memory: 8 * 1024, Threads: 1, SaltLen: 16, KeyLen: 32}

	hash, err := h.Hash("Str0ng!Pass")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$"), hash)
	assert.True(t, h.Compare("Str0ng!Pass", hash))
	assert.False(t, h.Compare("Str0ng!Pasz", hash))

	again, err := h.Hash("Str0ng!Pass")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "salts must differ")

	// Parameters are read from the hash, not the hasher.
	assert.True(t, NewArgon2Hasher().Compare("Str0ng!Pass", hash))

	for _, bad := range []string{"", "plain", "$argon2i$v=19$m=1,t=1,p=1$c2FsdA$a2V5", "$argon2id$v=19$m=x$c2FsdA$a2V5", "$argon2id$v=19$m=8192,t=1,p=1$!!$a2V5"} {
		assert.False(t, h.Compare("Str0ng!Pass", bad), bad)
	}
}

func TestNewHasher(t *testing.T) {
	h, err := NewHasher(HasherBcrypt, bcrypt.MinCost)
	require.NoError(t, err)
	assert.IsType(t, &BcryptHasher{}, h)

	h, err = NewHasher(HasherArgon2id, 0)
	require.NoError(t, err)
	assert.IsType(t, &Argon2Hasher{}, h)

	_, err = NewHasher("md5", 0)
	assert.Error(t, err)
}

func TestAuthenticateWithArgon2(t *testing.T) {
	s := NewStore(kv.NewMemoryStore(), &Argon2Hasher{Time: 1, Memory: 8 * 1024, Threads: 1, SaltLen: 16, KeyLen: 32})
	ctx := context.Background()

	_, err := s.Register(ctx, "Ana", "a@b.com", "Str0ng!Pass", t0)
	require.NoError(t, err)

	u, err := s.Authenticate(ctx, "a@b.com", "Str0ng!Pass")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", u.Email)

	_, err = s.Authenticate(ctx, "a@b.com", "Wr0ng!Pass")
	assert.ErrorIs(t, err, domain.ErrWrongPassword)
}

func TestDelete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "Ana", "a@b.com", "Str0ng!Pass", t0)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, " a@b.com "))
	_, err = s.FindByEmail(ctx, "a@b.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, s.Delete(ctx, "a@b.com"), "absent account")

	_, err = s.Register(ctx, "Ana", "a@b.com", "Str0ng!Pass", t0)
	assert.NoError(t, err)
}
