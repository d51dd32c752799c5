// Package user implements account management: creation, deletion, and
// password changes. Session lifecycle lives in internal/service/auth,
// which does not import this package; callers that need both look the
// User up here and pass its id to auth.
package user

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/argon2"

	"russet/internal/domain/entity"
	"russet/internal/repository"
)

// HashParams are the Argon2id cost parameters a Service hashes new
// passwords with. VerifyPassword takes the cost from the stored hash
// itself, so it also verifies hashes made under other parameters.
type HashParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

func DefaultHashParams() HashParams {
	return HashParams{Time: 3, Memory: 64 * 1024, Threads: 4, KeyLen: 32, SaltLen: 16}
}

type Service struct {
	users  repository.UserRepository
	pepper []byte // keys an HMAC of the password (see pepperedPassword); not passed to Argon2 as a secret key, never concatenated into the password
	params HashParams
}

func New(users repository.UserRepository, pepper []byte, params HashParams) *Service {
	return &Service{users: users, pepper: pepper, params: params}
}

// Create adds a new account with the given password, hashed immediately —
// Create never stores a plaintext password even transiently beyond the
// call stack that produced it.
func (s *Service) Create(ctx context.Context, name, password string, t entity.UserType) (entity.User, error) {
	if _, err := s.users.GetByName(ctx, name); err == nil {
		return entity.User{}, entity.ErrAlreadyExists
	} else if err != entity.ErrNotFound {
		return entity.User{}, fmt.Errorf("Create: %w", err)
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return entity.User{}, fmt.Errorf("Create: %w", err)
	}
	u := entity.User{
		ID:           ulid.Make().String(),
		Name:         name,
		PasswordHash: hash,
		Type:         t,
		CreatedAt:    time.Now(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return entity.User{}, fmt.Errorf("Create: %w", err)
	}
	return u, nil
}

func (s *Service) SetPassword(ctx context.Context, userID, password string) error {
	hash, err := s.hashPassword(password)
	if err != nil {
		return fmt.Errorf("SetPassword: %w", err)
	}
	return s.users.UpdatePasswordHash(ctx, userID, hash)
}

func (s *Service) Delete(ctx context.Context, userID string) error {
	return s.users.Delete(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID string) (entity.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *Service) GetByName(ctx context.Context, name string) (entity.User, error) {
	return s.users.GetByName(ctx, name)
}

// HasSysop reports whether any Sysop account exists, used at startup to
// refuse to serve traffic with no way to administer the instance.
func (s *Service) HasSysop(ctx context.Context) (bool, error) {
	n, err := s.users.CountByType(ctx, entity.UserTypeSysop)
	if err != nil {
		return false, fmt.Errorf("HasSysop: %w", err)
	}
	return n > 0, nil
}

// VerifyPassword checks a plaintext password against a stored PHC hash.
func (s *Service) VerifyPassword(password, phcHash string) (bool, error) {
	p, salt, want, err := parsePHC(phcHash)
	if err != nil {
		return false, err
	}
	got := argon2.IDKey(s.pepperedPassword(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	return constantTimeEqual(got, want), nil
}

// dummyHash is a fixed, precomputed Argon2id hash with no corresponding
// real account, verified against on a login attempt for a name that
// doesn't exist. Without this, the nonexistent-user branch would return
// immediately while the wrong-password branch pays the full Argon2id
// cost, letting a timing measurement reveal which usernames are
// registered.
var dummyHash = formatPHC(DefaultHashParams(),
	make([]byte, DefaultHashParams().SaltLen),
	make([]byte, DefaultHashParams().KeyLen))

// Authenticate verifies name/password and returns the matching User on
// success. It performs a dummy verification against dummyHash when name
// doesn't exist, at the same cost parameters Create uses, so a caller
// timing the call can't distinguish "no such user" from "wrong password".
func (s *Service) Authenticate(ctx context.Context, name, password string) (entity.User, bool, error) {
	u, err := s.users.GetByName(ctx, name)
	if err != nil {
		if err != entity.ErrNotFound {
			return entity.User{}, false, fmt.Errorf("Authenticate: %w", err)
		}
		if _, verifyErr := s.VerifyPassword(password, dummyHash); verifyErr != nil {
			return entity.User{}, false, fmt.Errorf("Authenticate: dummy verify: %w", verifyErr)
		}
		return entity.User{}, false, nil
	}

	ok, err := s.VerifyPassword(password, u.PasswordHash)
	if err != nil {
		return entity.User{}, false, fmt.Errorf("Authenticate: %w", err)
	}
	return u, ok, nil
}

func (s *Service) hashPassword(password string) (string, error) {
	salt := make([]byte, s.params.SaltLen)
	if err := randRead(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey(s.pepperedPassword(password), salt, s.params.Time, s.params.Memory, s.params.Threads, s.params.KeyLen)
	return formatPHC(s.params, salt, key), nil
}

// pepperedPassword mixes the server-wide pepper into the password as a
// keyed MAC rather than plain concatenation: golang.org/x/crypto/argon2
// exposes no secret-key parameter, so HMAC-SHA256 keyed on the pepper
// stands in for Argon2's keyed construction. An attacker
// who recovers the password hashes but not the pepper still can't run a
// dictionary attack directly against argon2.IDKey.
func (s *Service) pepperedPassword(password string) []byte {
	mac := hmac.New(sha256.New, s.pepper)
	mac.Write([]byte(password))
	return mac.Sum(nil)
}
