package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"sentinel-guard/internal/model"
)

const DefaultFileName = "session.json"

type fileData struct {
	Token string          `json:"auth_token"`
	User  *model.UserInfo `json:"user_info,omitempty"`
}

// FileStore keeps the session in a JSON file readable only by the owner.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath returns <user config dir>/sentinel-guard/session.json.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config dir: %w", err)
	}
	return filepath.Join(dir, "sentinel-guard", DefaultFileName), nil
}

func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Load() (string, *model.UserInfo, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to read session file %s: %w", f.path, err)
	}

	var fd fileData
	if err := json.Unmarshal(data, &fd); err != nil {
		return "", nil, fmt.Errorf("failed to parse session file %s: %w", f.path, err)
	}
	return fd.Token, fd.User, nil
}

func (f *FileStore) Save(token string, user *model.UserInfo) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session dir: %w", err)
	}
	data, err := json.MarshalIndent(fileData{Token: token, User: user}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file %s: %w", f.path, err)
	}
	return nil
}

func (f *FileStore) Clear() error {
	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file %s: %w", f.path, err)
	}
	return nil
}

// Open restores the session persisted at path, or at DefaultPath when path
// is empty. A corrupt file yields an empty session and the error.
func Open(path string) (*Session, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return New(), err
		}
		path = p
	}
	return NewWithStore(NewFileStore(path))
}
