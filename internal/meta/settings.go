// Package meta persists application metadata: the machine-local key material,
// the imported Google client secret, the OAuth token, and a bounded history of
// previously used option sets, encrypted at rest.
package meta

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"
)

// File names under the user's home (or a caller-supplied) directory.
const (
	SettingsFileName = ".gslide2media"
	MetadataFileName = ".gslide2media_meta"
)

// Key derivation parameters. The settings file is a machine-local secret, not
// a network secret, so it is stored in the clear; the metadata blob is
// encrypted under the derived key.
const (
	kdfIterations = 100_000
	derivedKeyLen = 32
	clientIDLen   = 64
)

// FilePerms restricts settings and metadata files to owner-only access.
const FilePerms = 0o600

// Settings is the on-disk settings file: a random client id, a random project
// id, and the PBKDF2-HMAC-SHA256 key derived from them. All base64-encoded.
type Settings struct {
	ClientID    string `toml:"client_id"`
	ProjectID   string `toml:"project_id"`
	ProjectMeta string `toml:"project_meta"`
}

// GenerateSettings creates fresh random key material.
func GenerateSettings() (*Settings, error) {
	clientID := make([]byte, clientIDLen)
	if _, err := rand.Read(clientID); err != nil {
		return nil, fmt.Errorf("meta: generating client id: %w", err)
	}
	projectID := uuid.New()

	key := deriveKey(clientID, projectID[:])

	return &Settings{
		ClientID:    base64.URLEncoding.EncodeToString(clientID),
		ProjectID:   base64.URLEncoding.EncodeToString(projectID[:]),
		ProjectMeta: base64.URLEncoding.EncodeToString(key),
	}, nil
}

// deriveKey runs PBKDF2-HMAC-SHA256 over the client id, salted with the
// project id.
func deriveKey(clientID, projectID []byte) []byte {
	return pbkdf2.Key(clientID, projectID, kdfIterations, derivedKeyLen, sha256.New)
}

// WriteSettings writes the settings file atomically with 0600 permissions.
func WriteSettings(path string, s *Settings) error {
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("meta: encoding settings: %w", err)
	}
	return writeFileAtomic(path, data)
}

// LoadSettings reads the settings file. Returns fs.ErrNotExist wrapped when
// the file is missing.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("meta: reading settings %s: %w", path, err)
	}
	var s Settings
	if err := toml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("meta: decoding settings %s: %w", path, err)
	}
	return &s, nil
}

// SettingsExist reports whether a settings file is present at path.
func SettingsExist(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

// ClientIDBytes decodes the raw client id.
func (s *Settings) ClientIDBytes() ([]byte, error) {
	b, err := base64.URLEncoding.DecodeString(s.ClientID)
	if err != nil {
		return nil, fmt.Errorf("meta: decoding client id: %w", err)
	}
	return b, nil
}

// ProjectIDBytes decodes the raw project id.
func (s *Settings) ProjectIDBytes() ([]byte, error) {
	b, err := base64.URLEncoding.DecodeString(s.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("meta: decoding project id: %w", err)
	}
	return b, nil
}

// DerivedKey decodes the stored derived key.
func (s *Settings) DerivedKey() ([]byte, error) {
	b, err := base64.URLEncoding.DecodeString(s.ProjectMeta)
	if err != nil {
		return nil, fmt.Errorf("meta: decoding derived key: %w", err)
	}
	if len(b) != derivedKeyLen {
		return nil, fmt.Errorf("meta: derived key has %d bytes, want %d", len(b), derivedKeyLen)
	}
	return b, nil
}

// writeFileAtomic writes data to path via a temp file in the same directory
// and a rename, with owner-only permissions.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("meta: creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".meta-*.tmp")
	if err != nil {
		return fmt.Errorf("meta: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("meta: setting permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("meta: writing: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("meta: syncing: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("meta: closing: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("meta: renaming: %w", err)
	}
	success = true
	return nil
}
