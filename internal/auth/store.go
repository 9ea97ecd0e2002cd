package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

var (
	// ErrNoToken is returned by Load when nothing is stored.
	ErrNoToken = errors.New("auth: no stored token")
	// ErrNotAuthenticated is returned when no usable login exists.
	ErrNotAuthenticated = errors.New("auth: not authenticated")
)

// TokenStore persists the technician's login between runs.
type TokenStore interface {
	Load() (domain.Token, error)
	Save(token domain.Token) error
	Clear() error
}

type fileTokenStore struct {
	path string
}

// NewFileTokenStore keeps the token as JSON at path, readable by the owner only.
func NewFileTokenStore(path string) TokenStore {
	return &fileTokenStore{path: path}
}

func (s *fileTokenStore) Load() (domain.Token, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.Token{}, ErrNoToken
	}
	if err != nil {
		return domain.Token{}, fmt.Errorf("read token: %w", err)
	}
	var tok domain.Token
	if err := json.Unmarshal(raw, &tok); err != nil || tok.Value == "" {
		return domain.Token{}, ErrNoToken
	}
	return tok, nil
}

func (s *fileTokenStore) Save(token domain.Token) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".token-*")
	if err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("write token: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write token: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

func (s *fileTokenStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}
