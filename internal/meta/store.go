package meta

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/oauth2"

	"github.com/gslide2media/gslide2media/internal/options"
)

// Sentinel errors surfaced to the user with remediation messages.
var (
	// ErrStoreUnreadable means the metadata file exists but cannot be
	// decrypted or decoded. History is never silently reset; recovery
	// requires an explicit Reset.
	ErrStoreUnreadable = errors.New("metadata store unreadable")
	// ErrNoMatchingEntry means no history entry carries the given label.
	ErrNoMatchingEntry = errors.New("no matching history entry")
	// ErrNothingToClear means the history is already empty. Informational.
	ErrNothingToClear = errors.New("history is empty, nothing to clear")
	// ErrNoHistory means the history has no entries to select from.
	ErrNoHistory = errors.New("no history available")
)

// schemaVersion tags the serialized store for forward-compatible evolution.
const schemaVersion = 1

// storeFile is the versioned serialization schema for the encrypted blob.
type storeFile struct {
	Version            int                `json:"version"`
	Secret             json.RawMessage    `json:"secret,omitempty"`
	Token              *oauth2.Token      `json:"token,omitempty"`
	History            []*options.Options `json:"history"`
	MaxUnnamedRetained int                `json:"max_unnamed_retained"`
}

// Config holds store configuration.
type Config struct {
	// Dir is the directory holding the settings and metadata files.
	// Defaults to the user's home directory.
	Dir string
	// MaxUnnamedRetained bounds the unlabeled history. Labeled entries are
	// never evicted by count.
	MaxUnnamedRetained int
	Logger             *slog.Logger
}

// Store is the on-disk configuration store. Every mutation re-encrypts and
// rewrites the whole metadata file (write-through), holding an exclusive lock
// file across the read-modify-write sequence so concurrent processes cannot
// lose updates.
type Store struct {
	settingsPath string
	metadataPath string
	lockPath     string
	key          []byte
	logger       *slog.Logger

	secret             json.RawMessage
	token              *oauth2.Token
	history            []*options.Options
	maxUnnamedRetained int
}

// Open loads the store, generating fresh settings and an empty store on first
// use. Replaces the original's process-wide singleton: callers hold the
// returned handle and pass it where needed.
func Open(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxUnnamedRetained <= 0 {
		cfg.MaxUnnamedRetained = options.DefaultUnnamedRetention
	}
	dir := cfg.Dir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("meta: resolving home directory: %w", err)
		}
		dir = home
	}

	s := &Store{
		settingsPath:       filepath.Join(dir, SettingsFileName),
		metadataPath:       filepath.Join(dir, MetadataFileName),
		lockPath:           filepath.Join(dir, MetadataFileName+".lock"),
		logger:             cfg.Logger,
		maxUnnamedRetained: cfg.MaxUnnamedRetained,
	}

	settings, err := s.loadOrGenerateSettings()
	if err != nil {
		return nil, err
	}
	key, err := settings.DerivedKey()
	if err != nil {
		return nil, err
	}
	s.key = key

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadOrGenerateSettings() (*Settings, error) {
	settings, err := LoadSettings(s.settingsPath)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	settings, err = GenerateSettings()
	if err != nil {
		return nil, err
	}
	if err := WriteSettings(s.settingsPath, settings); err != nil {
		return nil, err
	}
	s.logger.Info("generated settings file",
		slog.String("path", s.settingsPath),
	)
	return settings, nil
}

// load decrypts and deserializes the metadata file. A missing file yields an
// empty store; a corrupt or undecryptable file is fatal.
func (s *Store) load() error {
	blob, err := os.ReadFile(s.metadataPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("meta: reading metadata %s: %w", s.metadataPath, err)
	}

	plaintext, err := open(s.key, blob)
	if err != nil {
		return fmt.Errorf("%w: %s (use 'auth reset-store --force' to start over): %v",
			ErrStoreUnreadable, s.metadataPath, err)
	}
	var f storeFile
	if err := json.Unmarshal(plaintext, &f); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStoreUnreadable, s.metadataPath, err)
	}

	s.secret = f.Secret
	s.token = f.Token
	s.history = f.History
	if f.MaxUnnamedRetained > 0 {
		s.maxUnnamedRetained = f.MaxUnnamedRetained
	}
	s.logger.Debug("metadata store loaded",
		slog.Int("history_entries", len(s.history)),
	)
	return nil
}

// persist serializes, encrypts, and atomically rewrites the metadata file.
func (s *Store) persist() error {
	f := storeFile{
		Version:            schemaVersion,
		Secret:             s.secret,
		Token:              s.token,
		History:            s.history,
		MaxUnnamedRetained: s.maxUnnamedRetained,
	}
	plaintext, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("meta: encoding store: %w", err)
	}
	blob, err := seal(s.key, plaintext)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.metadataPath, blob)
}

// lockTimeout bounds how long a process waits for another process to finish
// its read-modify-write of the metadata file.
const lockTimeout = 5 * time.Second

// withLock runs fn while holding the exclusive lock file. The metadata file
// is re-read under the lock first, so fn mutates the latest persisted state
// rather than the state seen at Open; another process's writes since then are
// not lost.
func (s *Store) withLock(fn func() error) error {
	deadline := time.Now().Add(lockTimeout)
	for {
		f, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, FilePerms)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			break
		}
		if !errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("meta: acquiring lock %s: %w", s.lockPath, err)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("meta: metadata store locked by another process (remove %s if stale)", s.lockPath)
		}
		time.Sleep(50 * time.Millisecond)
	}
	defer os.Remove(s.lockPath)

	if err := s.reload(); err != nil {
		return err
	}
	return fn()
}

// reload replaces the in-memory state with the current metadata file contents.
// A missing file yields the empty state.
func (s *Store) reload() error {
	s.secret = nil
	s.token = nil
	s.history = nil
	return s.load()
}

// Add records an option set in history. Untouched defaults are skipped.
// Equal entries (by identity) are replaced so the surviving entry is the most
// recent one; the unnamed retention bound is enforced before persisting.
func (s *Store) Add(o *options.Options) error {
	if o.IsDefault() {
		s.logger.Debug("skipping default option set")
		return nil
	}
	return s.withLock(func() error {
		entry := o.Clone()
		entry.MarkTime(options.TimeLastUsed)
		s.removeEqualLocked(entry)
		s.history = append(s.history, entry)
		s.enforceRetentionLocked()
		return s.persist()
	})
}

func (s *Store) removeEqualLocked(o *options.Options) {
	kept := s.history[:0]
	for _, h := range s.history {
		if !h.Equal(o) {
			kept = append(kept, h)
		}
	}
	s.history = kept
}

// enforceRetentionLocked keeps every named entry plus the most recently used
// maxUnnamedRetained unnamed entries.
func (s *Store) enforceRetentionLocked() {
	var named, unnamed []*options.Options
	for _, h := range s.history {
		if h.Named() {
			named = append(named, h)
		} else {
			unnamed = append(unnamed, h)
		}
	}
	// History is appended in use order, so within one timestamp second the
	// later entry is the more recent. Reverse before the stable sort so ties
	// resolve most-recent-first.
	reverse(unnamed)
	sort.SliceStable(unnamed, func(i, j int) bool {
		return unnamed[i].LastUsed > unnamed[j].LastUsed
	})
	if len(unnamed) > s.maxUnnamedRetained {
		evicted := len(unnamed) - s.maxUnnamedRetained
		unnamed = unnamed[:s.maxUnnamedRetained]
		s.logger.Debug("evicted unnamed history entries",
			slog.Int("count", evicted),
		)
	}
	s.history = append(named, unnamed...)
}

// Lookup finds the entry with the given label, stamps its last-used time, and
// persists. Retrieval counts as use.
func (s *Store) Lookup(label string) (*options.Options, error) {
	var found *options.Options
	err := s.withLock(func() error {
		for _, h := range s.history {
			if h.Named() && h.Label == label {
				found = h
				break
			}
		}
		if found == nil {
			return fmt.Errorf("%w: label %q", ErrNoMatchingEntry, label)
		}
		found.MarkTime(options.TimeLastUsed)
		return s.persist()
	})
	if err != nil {
		return nil, err
	}
	return found.Clone(), nil
}

// Remove deletes the entry with the given label and persists.
func (s *Store) Remove(label string) error {
	return s.withLock(func() error {
		for i, h := range s.history {
			if h.Named() && h.Label == label {
				s.history = append(s.history[:i], s.history[i+1:]...)
				return s.persist()
			}
		}
		return fmt.Errorf("%w: label %q", ErrNoMatchingEntry, label)
	})
}

// RemoveSet deletes the entry equal to o (prompt-selected removal) and
// persists.
func (s *Store) RemoveSet(o *options.Options) error {
	return s.withLock(func() error {
		for i, h := range s.history {
			if h.Equal(o) {
				s.history = append(s.history[:i], s.history[i+1:]...)
				return s.persist()
			}
		}
		return fmt.Errorf("%w", ErrNoMatchingEntry)
	})
}

// Clear empties the history. Confirmation is the caller's responsibility;
// the store reports ErrNothingToClear when there is nothing to do.
func (s *Store) Clear() error {
	return s.withLock(func() error {
		if len(s.history) == 0 {
			return ErrNothingToClear
		}
		s.history = nil
		return s.persist()
	})
}

// History returns a copy of the history entries.
func (s *Store) History() []*options.Options {
	out := make([]*options.Options, len(s.history))
	for i, h := range s.history {
		out[i] = h.Clone()
	}
	return out
}

// Collate partitions the history into named and unnamed sets, each sorted
// most recently used first. Used by the history prompt and listing.
func (s *Store) Collate() (named, unnamed []*options.Options) {
	for _, h := range s.history {
		if h.Named() {
			named = append(named, h.Clone())
		} else {
			unnamed = append(unnamed, h.Clone())
		}
	}
	byLastUsed := func(list []*options.Options) {
		reverse(list)
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].LastUsed > list[j].LastUsed
		})
	}
	byLastUsed(named)
	byLastUsed(unnamed)
	return named, unnamed
}

func reverse(list []*options.Options) {
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
}

// ImportClientSecret reads a client-secret JSON document into the store and
// persists. The caller is responsible for securely deleting the source file.
func (s *Store) ImportClientSecret(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("meta: reading client secret %s: %w", path, err)
	}
	if !json.Valid(data) {
		return fmt.Errorf("meta: client secret %s is not valid JSON", path)
	}
	return s.withLock(func() error {
		s.secret = json.RawMessage(data)
		s.logger.Info("imported client secret",
			slog.String("source", path),
		)
		return s.persist()
	})
}

// Secret returns the stored client-secret document, or nil.
func (s *Store) Secret() json.RawMessage {
	return s.secret
}

// Token returns the stored OAuth token, or nil.
func (s *Store) Token() *oauth2.Token {
	return s.token
}

// SetToken stores a token and persists.
func (s *Store) SetToken(tok *oauth2.Token) error {
	return s.withLock(func() error {
		s.token = tok
		return s.persist()
	})
}

// Reset deletes the metadata file and empties the in-memory store. Only ever
// invoked through an explicit user flag; never done automatically.
func (s *Store) Reset() error {
	return s.withLock(func() error {
		s.secret = nil
		s.token = nil
		s.history = nil
		if err := os.Remove(s.metadataPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("meta: removing metadata file: %w", err)
		}
		return nil
	})
}

// ForceReset removes the metadata file without attempting to decrypt it.
// This is the recovery path for an unreadable store, where Open itself fails.
func ForceReset(cfg Config) error {
	dir := cfg.Dir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("meta: resolving home directory: %w", err)
		}
		dir = home
	}
	path := filepath.Join(dir, MetadataFileName)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("meta: removing metadata file: %w", err)
	}
	return nil
}

// MetadataPath returns the metadata file location.
func (s *Store) MetadataPath() string {
	return s.metadataPath
}

// SettingsPath returns the settings file location.
func (s *Store) SettingsPath() string {
	return s.settingsPath
}
