package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hisham-kadambot/LLM-MCP/internal/models"
)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	GetUserByID(id string) (models.User, error)
	GetUserByUsername(username string) (models.User, error)
	CreateUser(username, password, email string) (models.User, error)
	AuthenticateUser(username, password string) (models.User, error)
	DeactivateUser(id string) error
	DeleteUser(id string) error
}

// UserService provides business logic for user management.
type UserService struct {
	db                *sql.DB
	minPasswordLength int
}

// NewUserService creates a new UserService.
func NewUserService(db *sql.DB, minPasswordLength int) *UserService {
	return &UserService{db: db, minPasswordLength: minPasswordLength}
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(id string) (models.User, error) {
	return s.getUser("id", id)
}

// GetUserByUsername retrieves a single user by their username. The match
// is exact and case-sensitive.
func (s *UserService) GetUserByUsername(username string) (models.User, error) {
	return s.getUser("username", username)
}

func (s *UserService) getUser(column, value string) (models.User, error) {
	var user models.User
	var email sql.NullString
	row := s.db.QueryRow(
		"SELECT id, username, email, password_hash, is_active, created_at, updated_at FROM users WHERE "+column+" = ?",
		value,
	)
	err := row.Scan(&user.ID, &user.Username, &email, &user.PasswordHash, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	user.Email = email.String
	return user, nil
}

// CreateUser creates a new user, hashing their password. The plaintext
// password is never persisted or logged.
func (s *UserService) CreateUser(username, password, email string) (models.User, error) {
	if strings.TrimSpace(username) == "" || len(password) < s.minPasswordLength {
		return models.User{}, fmt.Errorf("%w: username must be non-empty and password at least %d characters",
			ErrInvalidInput, s.minPasswordLength)
	}

	if _, err := s.GetUserByUsername(username); err == nil {
		return models.User{}, ErrDuplicateUser
	} else if !errors.Is(err, ErrNotFound) {
		return models.User{}, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	id := uuid.New().String()
	stmt, err := s.db.Prepare("INSERT INTO users(id, username, email, password_hash) VALUES(?, ?, ?, ?)")
	if err != nil {
		return models.User{}, err
	}
	defer stmt.Close()

	if _, err = stmt.Exec(id, username, email, string(hashedPassword)); err != nil {
		// The UNIQUE constraint backs up the pre-check under concurrent registration.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return models.User{}, ErrDuplicateUser
		}
		return models.User{}, err
	}

	return s.GetUserByID(id)
}

// AuthenticateUser verifies a user's credentials. Unknown usernames and
// wrong passwords produce the same ErrInvalidCredentials.
func (s *UserService) AuthenticateUser(username, password string) (models.User, error) {
	user, err := s.GetUserByUsername(username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}

	if !user.IsActive {
		return models.User{}, ErrAccountInactive
	}

	user.PasswordHash = ""
	return user, nil
}

// DeactivateUser soft-deletes a user by clearing the active flag.
func (s *UserService) DeactivateUser(id string) error {
	res, err := s.db.Exec("UPDATE users SET is_active = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes a user from the database. API key records cascade.
func (s *UserService) DeleteUser(id string) error {
	_, err := s.db.Exec("DELETE FROM users WHERE id = ?", id)
	return err
}
