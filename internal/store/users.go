package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"fieldsales/backend/internal/domain"
)

// Users keeps sales-rep accounts as one JSON array under a global key.
// Writes are serialized since they read and rewrite that array.
type Users struct {
	mu sync.Mutex
	kv KV
}

func NewUsers(kv KV) *Users {
	return &Users{kv: kv}
}

func (u *Users) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return ErrInvalidRecord
	}
	if user.Role == "" {
		user.Role = domain.RoleSalesRep
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	users, err := u.ListUsers(ctx)
	if err != nil {
		return err
	}
	if slices.ContainsFunc(users, func(existing domain.UserAccount) bool { return existing.Username == user.Username }) {
		return ErrConflict
	}
	return AppendRecord(ctx, u.kv, GlobalKey(KeyUsers), user)
}

func (u *Users) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	users, err := LoadList[domain.UserAccount](ctx, u.kv, GlobalKey(KeyUsers))
	if err != nil {
		return nil, err
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int { return strings.Compare(a.Username, b.Username) })
	return users, nil
}

func (u *Users) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return ErrInvalidRecord
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	users, err := LoadList[domain.UserAccount](ctx, u.kv, GlobalKey(KeyUsers))
	if err != nil {
		return err
	}
	idx := slices.IndexFunc(users, func(user domain.UserAccount) bool { return user.Username == username })
	if idx < 0 {
		return ErrNotFound
	}
	users[idx].Password = password
	return SetRecord(ctx, u.kv, GlobalKey(KeyUsers), users)
}

// SeedDefaultUsers creates an admin and a sales-rep account when no account
// exists yet. Empty passwords fall back to dev defaults with a warning.
func (u *Users) SeedDefaultUsers(ctx context.Context, adminPassword string, repPassword string, logger *zap.Logger) error {
	existing, err := u.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if adminPassword == "" || repPassword == "" {
		logger.Warn("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_REP_PASSWORD to override")
	}
	if adminPassword == "" {
		adminPassword = "admin123"
	}
	if repPassword == "" {
		repPassword = "rep12345"
	}

	now := time.Now().UTC()
	for _, seed := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPassword, domain.RoleAdmin},
		{"rep", repPassword, domain.RoleSalesRep},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(seed.password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		if err := u.CreateUser(ctx, domain.UserAccount{
			Username:  seed.username,
			Password:  string(hash),
			Role:      seed.role,
			Active:    true,
			CreatedAt: now,
		}); err != nil {
			return err
		}
	}
	return nil
}
