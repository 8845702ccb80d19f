package service

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aussiebroadwan/hms/pkg/cryptox"
	"github.com/aussiebroadwan/hms/pkg/idx"
)

// Staff roles. Each role unlocks a different set of screens.
const (
	RoleAdmin      = "admin"
	RolePDG        = "pdg"
	RoleDoctor     = "doctor"
	RoleNurse      = "nurse"
	RoleCashier    = "cashier"
	RoleHR         = "hr"
	RolePharmacist = "pharmacist"
)

type User struct {
	ID       string
	Username string
	Name     string
	Role     string

	passwordHash string
}

// UserService keeps staff accounts in memory with Argon2id password hashes.
type UserService struct {
	Hasher *cryptox.PasswordHasher

	mu     sync.RWMutex
	byName map[string]*User
	byID   map[string]*User
}

func NewUserService(hasher *cryptox.PasswordHasher) *UserService {
	return &UserService{
		Hasher: hasher,
		byName: make(map[string]*User),
		byID:   make(map[string]*User),
	}
}

// Add creates an account. Usernames are case-insensitive.
func (s *UserService) Add(username, name, role, password string) (User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || password == "" {
		return User{}, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[username]; exists {
		return User{}, fmt.Errorf("user %q: %w", username, ErrDuplicate)
	}

	u := &User{
		ID:           string(idx.New()),
		Username:     username,
		Name:         name,
		Role:         role,
		passwordHash: hash,
	}
	s.byName[username] = u
	s.byID[u.ID] = u

	return *u, nil
}

// SeedStaff creates one account per role, all sharing password.
func (s *UserService) SeedStaff(password string) error {
	staff := []struct{ username, name, role string }{
		{"admin", "System Administrator", RoleAdmin},
		{"pdg", "Directrice Générale", RolePDG},
		{"doctor", "Dr. Alice Martin", RoleDoctor},
		{"nurse", "Kwame Asante", RoleNurse},
		{"cashier", "Fatou Diallo", RoleCashier},
		{"hr", "Jean Dupont", RoleHR},
		{"pharmacist", "Ngozi Okafor", RolePharmacist},
	}

	for _, st := range staff {
		if _, err := s.Add(st.username, st.name, st.role, password); err != nil {
			return fmt.Errorf("seed %s: %w", st.username, err)
		}
	}
	return nil
}

// Authenticate checks a username/password pair.
func (s *UserService) Authenticate(username, password string) (User, error) {
	s.mu.RLock()
	u, ok := s.byName[strings.ToLower(strings.TrimSpace(username))]
	s.mu.RUnlock()
	if !ok {
		return User{}, ErrInvalidCredentials
	}

	if err := s.Hasher.Verify(password, u.passwordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, fmt.Errorf("verify password: %w", err)
	}

	return *u, nil
}

func (s *UserService) GetByID(id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return *u, nil
}
