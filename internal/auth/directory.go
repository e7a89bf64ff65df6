// Package auth keeps the user directory and issues session tokens.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/storage"
)

const bcryptCost = 12

// AdminUser is treated as an administrator even when the flag is missing
// from an old directory file.
const AdminUser = "admin"

const createdAtLayout = "2006-01-02 15:04:05"

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserExists         = errors.New("user already exists")
	ErrWeakPassword       = errors.New("password must have at least 8 characters")
)

type userRecord struct {
	PasswordHash string `json:"password_hash,omitempty"`
	// LegacyPassword is an unsalted sha256 hex digest. It is replaced by a
	// bcrypt hash on the next successful login.
	LegacyPassword string `json:"password,omitempty"`
	IsAdmin        bool   `json:"is_admin"`
	CreatedAt      string `json:"created_at"`
}

// User is the public view of a directory entry.
type User struct {
	Name      string
	IsAdmin   bool
	CreatedAt string
}

// Directory is a users.json file of bcrypt password hashes.
type Directory struct {
	path   string
	cost   int
	now    func() time.Time
	logger *log.Logger

	mu sync.Mutex
}

type DirectoryOption func(*Directory)

// WithCost lowers the bcrypt cost, for tests.
func WithCost(cost int) DirectoryOption {
	return func(d *Directory) { d.cost = cost }
}

func WithDirectoryLogger(l *log.Logger) DirectoryOption {
	return func(d *Directory) { d.logger = l.WithComponent(log.ComponentAuth) }
}

func NewDirectory(path string, opts ...DirectoryOption) *Directory {
	d := &Directory{
		path:   path,
		cost:   bcryptCost,
		now:    time.Now,
		logger: log.Wrap(nil, log.ComponentAuth),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Directory) load() (map[string]userRecord, error) {
	b, err := os.ReadFile(d.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]userRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}
	users := map[string]userRecord{}
	if len(b) == 0 {
		return users, nil
	}
	if err := json.Unmarshal(b, &users); err != nil {
		return nil, fmt.Errorf("decode users file: %w", err)
	}
	return users, nil
}

func (d *Directory) save(users map[string]userRecord) error {
	b, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return fmt.Errorf("create users dir: %w", err)
	}
	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write users file: %w", err)
	}
	return os.Rename(tmp, d.path)
}

// Authenticate checks a password and returns the caller's identity.
// Unknown users and wrong passwords fail the same way.
func (d *Directory) Authenticate(ctx context.Context, name, password string) (core.Identity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	users, err := d.load()
	if err != nil {
		return core.Identity{}, err
	}
	rec, ok := users[name]
	if !ok {
		return core.Identity{}, ErrInvalidCredentials
	}

	switch {
	case rec.PasswordHash != "":
		if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
			return core.Identity{}, ErrInvalidCredentials
		}
	case rec.LegacyPassword != "":
		sum := sha256.Sum256([]byte(password))
		if subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(rec.LegacyPassword)) != 1 {
			return core.Identity{}, ErrInvalidCredentials
		}
		if err := d.upgrade(users, name, password); err != nil {
			d.logger.WarnContext(ctx, "Failed to upgrade legacy password hash",
				log.FieldUser, name, log.FieldError, err)
		}
	default:
		return core.Identity{}, ErrInvalidCredentials
	}

	return core.Identity{User: name, IsAdmin: rec.IsAdmin || name == AdminUser}, nil
}

func (d *Directory) upgrade(users map[string]userRecord, name, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		return err
	}
	rec := users[name]
	rec.PasswordHash = string(hash)
	rec.LegacyPassword = ""
	users[name] = rec
	return d.save(users)
}

// AddUser creates a user with a bcrypt hash of password.
func (d *Directory) AddUser(ctx context.Context, name, password string, admin bool) error {
	if err := storage.ValidateUser(name); err != nil {
		return err
	}
	if len(password) < 8 {
		return ErrWeakPassword
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	users, err := d.load()
	if err != nil {
		return err
	}
	if _, ok := users[name]; ok {
		return fmt.Errorf("%w: %s", ErrUserExists, name)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	users[name] = userRecord{
		PasswordHash: string(hash),
		IsAdmin:      admin,
		CreatedAt:    d.now().Format(createdAtLayout),
	}
	if err := d.save(users); err != nil {
		return err
	}

	d.logger.InfoContext(ctx, "User added", log.FieldUser, name, log.FieldAdmin, admin)
	return nil
}

// List returns every user sorted by name.
func (d *Directory) List(context.Context) ([]User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	users, err := d.load()
	if err != nil {
		return nil, err
	}
	out := make([]User, 0, len(users))
	for name, rec := range users {
		out = append(out, User{Name: name, IsAdmin: rec.IsAdmin || name == AdminUser, CreatedAt: rec.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
