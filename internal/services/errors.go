package services

import "errors"

var (
	// ErrDuplicateUser is returned when registering a username that already exists.
	ErrDuplicateUser = errors.New("username already exists")
	// ErrInvalidInput is returned when a username or password fails basic shape checks.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCredentials is returned for both unknown users and wrong
	// passwords so that login failures do not reveal which usernames exist.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive is returned when a deactivated account attempts to log in.
	ErrAccountInactive = errors.New("account inactive")
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
)
