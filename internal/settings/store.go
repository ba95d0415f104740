// Package settings persists per-user check-in configuration as a single
// JSON object keyed by user id. Every mutation goes through Update, which
// writes the file back before returning, so the on-disk state never lags
// more than one command behind.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/yclw/dus-checkin-bot/internal/domain"
)

// Store is safe for concurrent use by command handlers and scheduler
// goroutines; read-modify-persist sequences hold the store lock.
type Store struct {
	log  *zap.Logger
	path string

	mu    sync.Mutex
	users map[string]*domain.UserConfig
}

// userRecord is the wire form of a user entry. The legacy fields carry the
// pre-mapping schema where a user had exactly one notification target.
// Offset shadows the embedded field so a record written before the jitter
// radius existed can be told apart from an explicit zero.
type userRecord struct {
	domain.UserConfig
	Offset       *float64 `json:"offset"`
	LegacyTarget *string  `json:"notification_target,omitempty"`
	LegacyLevel  *string  `json:"notification_level,omitempty"`
}

// Open loads the settings file at path, creating an empty store if the
// file does not exist yet.
func Open(path string, log *zap.Logger) (*Store, error) {
	s := &Store{
		log:   log,
		path:  path,
		users: make(map[string]*domain.UserConfig),
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var records map[string]userRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	for userID, rec := range records {
		cfg := migrate(rec, log.With(zap.String("user", userID)))
		s.users[userID] = &cfg
	}
	log.Info("settings loaded", zap.Int("users", len(s.users)))
	return s, nil
}

// migrate normalizes a decoded record: legacy single target/level pairs
// become a one-entry targets map, and absent maps default to empty.
func migrate(rec userRecord, log *zap.Logger) domain.UserConfig {
	cfg := rec.UserConfig
	if rec.Offset != nil {
		cfg.JitterRadius = *rec.Offset
	} else {
		cfg.JitterRadius = domain.DefaultJitterRadius
	}
	if cfg.NotifyTargets == nil {
		cfg.NotifyTargets = map[string]domain.NotifyLevel{}
	}
	if cfg.NotifyAddressing == nil {
		cfg.NotifyAddressing = map[string]domain.AddressMode{}
	}
	if rec.LegacyTarget != nil && *rec.LegacyTarget != "" {
		level := domain.NotifyAlways
		if rec.LegacyLevel != nil {
			if parsed, ok := domain.ParseNotifyLevel(*rec.LegacyLevel); ok {
				level = parsed
			}
		}
		if _, exists := cfg.NotifyTargets[*rec.LegacyTarget]; !exists {
			cfg.NotifyTargets[*rec.LegacyTarget] = level
			log.Info("migrated legacy notification target",
				zap.String("target", *rec.LegacyTarget),
				zap.String("level", string(level)))
		}
	}
	if cfg.AutoTime == "" {
		cfg.AutoTime = domain.DefaultAutoTime
	}
	return cfg
}

// Get returns a copy of the user's record, lazily creating it with
// defaults on first sight. The lazily created record is kept in memory
// but not persisted until a mutation happens.
func (s *Store) Get(userID string) domain.UserConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(userID).Clone()
}

func (s *Store) getLocked(userID string) *domain.UserConfig {
	if cfg, ok := s.users[userID]; ok {
		return cfg
	}
	cfg := domain.NewUserConfig()
	s.users[userID] = &cfg
	return &cfg
}

// Update applies fn to the user's record and persists the whole store.
// It returns a copy of the record after mutation.
func (s *Store) Update(userID string, fn func(*domain.UserConfig)) (domain.UserConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.getLocked(userID)
	fn(cfg)
	if err := s.saveLocked(); err != nil {
		return domain.UserConfig{}, err
	}
	return cfg.Clone(), nil
}

// Snapshot returns copies of every record, keyed by user id.
func (s *Store) Snapshot() map[string]domain.UserConfig {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]domain.UserConfig, len(s.users))
	for id, cfg := range s.users {
		out[id] = cfg.Clone()
	}
	return out
}

// Save persists the current state. Used at shutdown; Update already saves
// after each mutation.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("settings dir: %w", err)
	}

	data, err := json.MarshalIndent(s.users, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	// Write-then-rename keeps a crash from truncating the settings file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
