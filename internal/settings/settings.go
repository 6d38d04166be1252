package settings

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"readlater/internal/domain"
	"readlater/internal/platform"
)

const Key = "settings"

//nolint:gochecknoglobals // Frozen config meant to be immutable.
var settingsJSON = jsoniter.Config{EscapeHTML: false}.Froze()

// stored tolerates partial documents so that missing keys fall back to the
// defaults.
type stored struct {
	NotifyTime    *string `json:"notifyTime,omitempty"`
	NotifyEnabled *bool   `json:"notifyEnabled,omitempty"`
}

type Store struct {
	storage platform.Storage
}

func New(storage platform.Storage) *Store {
	return &Store{storage: storage}
}

func (s *Store) Get(ctx context.Context) (domain.Settings, error) {
	item, err := s.storage.Get(ctx, Key)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("get settings: %w", err)
	}

	return decode(item.Value)
}

// Set shallow-merges patch into the current settings and persists the full
// result.
func (s *Store) Set(ctx context.Context, patch domain.SettingsPatch) (domain.Settings, error) {
	var merged domain.Settings

	err := platform.Update(ctx, s.storage, Key, func(current []byte) ([]byte, error) {
		settings, err := decode(current)
		if err != nil {
			return nil, err
		}

		merged = patch.Apply(settings)

		raw, err := settingsJSON.Marshal(stored{
			NotifyTime:    &merged.NotifyTime,
			NotifyEnabled: &merged.NotifyEnabled,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal settings: %w", err)
		}

		return raw, nil
	})
	if err != nil {
		return domain.Settings{}, fmt.Errorf("set settings: %w", err)
	}

	return merged, nil
}

func decode(raw []byte) (domain.Settings, error) {
	settings := domain.DefaultSettings()
	if len(raw) == 0 {
		return settings, nil
	}

	var partial stored
	if err := settingsJSON.Unmarshal(raw, &partial); err != nil {
		return domain.Settings{}, fmt.Errorf("unmarshal settings: %w", err)
	}

	return domain.SettingsPatch{
		NotifyTime:    partial.NotifyTime,
		NotifyEnabled: partial.NotifyEnabled,
	}.Apply(settings), nil
}
