package session

import "errors"

var (
	ErrShellExists         = errors.New("session: shell already exists")
	ErrShellNotFound       = errors.New("session: shell not found")
	ErrShellClosed         = errors.New("session: shell is closed")
	ErrUserExists          = errors.New("session: user already exists")
	ErrUserNotFound        = errors.New("session: user not found")
	ErrWritePermission     = errors.New("session: write permission denied")
)
