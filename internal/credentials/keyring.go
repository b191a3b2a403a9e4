// Package credentials stores the upstream token in the system keyring.
package credentials

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	serviceName = "naparnik-mcp"
	TokenName   = "NAPARNIK_TOKEN"
)

// ErrNotFound indicates that no token has been stored.
var ErrNotFound = errors.New("token not found")

func GetToken() (string, error) {
	secret, err := keyring.Get(serviceName, TokenName)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("read token: %w", err)
	}
	return secret, nil
}

func SetToken(value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return errors.New("token cannot be empty")
	}
	if err := keyring.Set(serviceName, TokenName, trimmed); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

func DeleteToken() error {
	if err := keyring.Delete(serviceName, TokenName); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// HasToken reports whether a token is stored.
func HasToken() (bool, error) {
	_, err := GetToken()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}
