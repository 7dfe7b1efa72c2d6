package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/tubelens/core/internal/config"
	"github.com/tubelens/core/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service manages the persisted Settings singleton. Reads are cached;
// updates are shallow merges of the supplied keys over the current record,
// last write wins.
type Service struct {
	db     *gorm.DB
	mu     sync.RWMutex
	cached *config.Settings
	events Events
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// SetEvents wires the change listener. Call once during startup.
func (s *Service) SetEvents(ev Events) {
	s.events = ev
}

// Get returns the current settings, falling back to defaults when no record
// exists yet. A missing record is persisted with defaults on first read.
func (s *Service) Get() (config.Settings, error) {
	s.mu.RLock()
	if s.cached != nil {
		defer s.mu.RUnlock()
		return *s.cached, nil
	}
	s.mu.RUnlock()

	return s.load()
}

func (s *Service) load() (config.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		return *s.cached, nil
	}

	var opt models.OptionModel
	err := s.db.Where("name = ?", optionKey).First(&opt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		defaults := config.DefaultSettings()
		s.cached = &defaults
		_ = s.persist(defaults)
		return defaults, nil
	}
	if err != nil {
		return config.Settings{}, err
	}

	loaded := config.DefaultSettings()
	if err := json.Unmarshal([]byte(opt.Value), &loaded); err != nil {
		return config.Settings{}, fmt.Errorf("stored settings corrupt: %w", err)
	}
	s.cached = &loaded
	return loaded, nil
}

// Patch merges the supplied keys over the current record, validates the
// result and persists it. Invalid patches are rejected whole.
func (s *Service) Patch(partial map[string]json.RawMessage) (config.Settings, error) {
	current, err := s.Get()
	if err != nil {
		return config.Settings{}, err
	}

	raw, err := json.Marshal(partial)
	if err != nil {
		return config.Settings{}, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}

	merged := current
	if err := json.Unmarshal(raw, &merged); err != nil {
		return config.Settings{}, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	if err := merged.Validate(); err != nil {
		return config.Settings{}, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}

	if err := s.persist(merged); err != nil {
		return config.Settings{}, err
	}

	s.mu.Lock()
	snapshot := merged
	s.cached = &snapshot
	s.mu.Unlock()

	if s.events != nil {
		s.events.SettingsUpdated(merged)
	}
	return merged, nil
}

func (s *Service) persist(value config.Settings) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	opt := models.OptionModel{Name: optionKey, Value: string(data)}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&opt).Error
}

// Invalidate clears the cache, forcing a DB reload on next Get.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
}
