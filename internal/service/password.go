package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"file.share/internal/store"
)

const MinPasswordLength = 4

type PasswordService struct {
	secrets store.SecretStore
	log     *slog.Logger
}

func NewPasswordService(secrets store.SecretStore, log *slog.Logger) *PasswordService {
	return &PasswordService{secrets: secrets, log: log}
}

// Status reports whether the operator password has been set.
func (s *PasswordService) Status(ctx context.Context) (bool, error) {
	set, err := s.secrets.IsSet(ctx)
	if err != nil {
		return false, fmt.Errorf("read password state: %w", err)
	}
	return set, nil
}

// Setup sets the first password. It fails with store.ErrAlreadySet once a
// password exists.
func (s *PasswordService) Setup(ctx context.Context, password, confirm string) error {
	if err := validateNew(password, confirm); err != nil {
		return err
	}

	if err := s.secrets.SetOnce(ctx, password); err != nil {
		if errors.Is(err, store.ErrAlreadySet) {
			return err
		}
		return fmt.Errorf("set password: %w", err)
	}

	s.log.Info("operator password configured")
	return nil
}

// Change replaces the password. The old password is checked before the new
// one is validated.
func (s *PasswordService) Change(ctx context.Context, oldPassword, newPassword, confirm string) error {
	if err := authorize(ctx, s.secrets, oldPassword); err != nil {
		return err
	}
	if err := validateNew(newPassword, confirm); err != nil {
		return err
	}

	if err := s.secrets.Change(ctx, oldPassword, newPassword); err != nil {
		switch {
		case errors.Is(err, store.ErrWrongPassword):
			return ErrUnauthorized
		case errors.Is(err, store.ErrSecretUnset):
			return ErrPasswordNotConfigured
		}
		return fmt.Errorf("change password: %w", err)
	}

	s.log.Info("operator password changed")
	return nil
}

func validateNew(password, confirm string) error {
	switch {
	case password == "":
		return ErrEmptyPassword
	case password != confirm:
		return ErrPasswordMismatch
	case utf8.RuneCountInString(password) < MinPasswordLength:
		return ErrPasswordTooShort
	}
	return nil
}
