package service

import (
	"errors"

	"file.share/internal/store"
)

var (
	ErrPasswordNotConfigured = errors.New("password has not been configured yet")
	ErrUnauthorized          = errors.New("wrong password")
	ErrNoFile                = errors.New("no file selected")
	ErrFileTooLarge          = errors.New("file is too large")
	ErrUnsupportedType       = errors.New("file type is not allowed")
	ErrIncompleteUpload      = errors.New("upload ended before the declared size was received")
	ErrNotFound              = errors.New("download link is not valid")

	ErrEmptyPassword    = errors.New("password is required")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrPasswordTooShort = errors.New("password must be at least 4 characters")
)

// Kind groups errors by how the caller should react.
type Kind int

const (
	KindStorage Kind = iota
	KindValidation
	KindAuth
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	default:
		return "storage"
	}
}

// KindOf classifies err. Anything unrecognised is a storage failure.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, store.ErrWrongPassword):
		return KindAuth
	case errors.Is(err, ErrNotFound),
		errors.Is(err, store.ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrPasswordNotConfigured),
		errors.Is(err, ErrNoFile),
		errors.Is(err, ErrFileTooLarge),
		errors.Is(err, ErrUnsupportedType),
		errors.Is(err, ErrIncompleteUpload),
		errors.Is(err, ErrEmptyPassword),
		errors.Is(err, ErrPasswordMismatch),
		errors.Is(err, ErrPasswordTooShort),
		errors.Is(err, store.ErrAlreadySet),
		errors.Is(err, store.ErrSecretUnset):
		return KindValidation
	default:
		return KindStorage
	}
}
