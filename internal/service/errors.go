package service

import "errors"

var (
	ErrValidation     = errors.New("invalid post envelope")
	ErrUnencodable    = errors.New("post cannot be canonically encoded")
	ErrConflict       = errors.New("post version already exists")
	ErrDigestMismatch = errors.New("attachment digest does not match data")
	ErrUnknownParent  = errors.New("version parent not found")
	ErrIntegrity      = errors.New("post data integrity violation")
	ErrPostNotFound   = errors.New("post not found")
	ErrBlobNotFound   = errors.New("attachment not found")
	ErrAppNotFound    = errors.New("app not found")
	ErrUserNotFound   = errors.New("user not found")
	// ErrInvalidCredentials 表示用户名或密码错误。
	ErrInvalidCredentials = errors.New("invalid username or password")
)
