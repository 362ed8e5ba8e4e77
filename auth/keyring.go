// Package auth stores source passwords in the system keyring.
package auth

import (
	"errors"
	"strings"

	"github.com/audiobook-dl/audiobook-dl/constant"
	"github.com/samber/mo"
	"github.com/zalando/go-keyring"
)

func user(source, username string) string {
	return strings.ToLower(source) + ":" + username
}

// SetPassword persists the password of username for source.
func SetPassword(source, username, password string) error {
	return keyring.Set(constant.App, user(source, username), password)
}

// Password returns the stored password, if any.
func Password(source, username string) (mo.Option[string], error) {
	password, err := keyring.Get(constant.App, user(source, username))
	if errors.Is(err, keyring.ErrNotFound) {
		return mo.None[string](), nil
	}
	if err != nil {
		return mo.None[string](), err
	}
	return mo.Some(password), nil
}

// DeletePassword removes the stored password. Deleting a missing entry is not an error.
func DeletePassword(source, username string) error {
	err := keyring.Delete(constant.App, user(source, username))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
