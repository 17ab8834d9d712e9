package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/todoauth/internal/common"
	"github.com/dmitrijs2005/todoauth/internal/server/models"
	"github.com/dmitrijs2005/todoauth/internal/server/repositories/accounts"
)

const minPasswordLength = 8

// CreateUser makes an active, verified account. Missing fields are
// prompted for; the password is always read from the terminal.
func (a *App) CreateUser(ctx context.Context, u NewUser) error {
	var err error

	if u.Email == "" {
		if u.Email, err = GetSimpleText(a.reader, "Email", a.out); err != nil {
			return err
		}
	}
	u.Email = common.NormalizeEmail(u.Email)
	if !common.IsValidEmail(u.Email) {
		return fmt.Errorf("invalid email %q", u.Email)
	}

	if u.Username == "" {
		if u.Username, err = GetSimpleText(a.reader, "Username", a.out); err != nil {
			return err
		}
	}
	if u.Username == "" {
		return errors.New("username is required")
	}

	pw, err := GetPassword("Password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	confirm, err := GetPassword("Password (again)", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if string(pw) != string(confirm) {
		return errors.New("passwords don't match")
	}
	if len([]rune(string(pw))) < minPasswordLength {
		return fmt.Errorf("password must contain at least %d characters", minPasswordLength)
	}

	hash, err := a.hasher.Hash(string(pw))
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}

	account, err := a.manager.Accounts(a.db).Create(ctx, &models.Account{
		Email:           u.Email,
		Username:        u.Username,
		PasswordHash:    hash,
		IsActive:        true,
		IsEmailVerified: true,
	})
	switch {
	case errors.Is(err, accounts.ErrDuplicateEmail):
		return fmt.Errorf("an account with email %s already exists", u.Email)
	case errors.Is(err, accounts.ErrDuplicateUsername):
		return fmt.Errorf("an account with username %s already exists", u.Username)
	case err != nil:
		return err
	}

	fmt.Fprintf(a.out, "created account %s (%s)\n", account.ID, account.Email)
	return nil
}
