// Package store wraps the persisted shared state behind typed accessors.
// Records, favorites and alerts live in their own tables; scalar pieces
// (credential snapshot, settings, watermark, flags, timestamps) live in a
// JSON-valued key/value table. Reads always hit the database so callers see
// the latest committed state before a read-modify-write.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"r6market/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	keyCredentials         = "requestHeaders"
	keySettings            = "settings"
	keyWatermark           = "lastTransactionTimestamp"
	keyLastUpdate          = "lastUpdate"
	keyLastDashboardUpdate = "lastDashboardUpdate"
)

// Refresh-flow in-progress flags.
const (
	FlagFavorites = "isUpdating"
	FlagOwned     = "isDashboardUpdating"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- key/value state ---

func (s *Store) getState(key string, out interface{}) (bool, error) {
	var row models.AppState
	err := s.db.Where("`key` = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read state %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(row.Value), out); err != nil {
		return false, fmt.Errorf("decode state %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) setState(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode state %s: %w", key, err)
	}
	row := models.AppState{Key: key, Value: string(raw)}
	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("write state %s: %w", key, err)
	}
	return nil
}

// --- credential snapshot ---

// Credentials returns the captured header snapshot, or nil if nothing has
// been captured yet.
func (s *Store) Credentials() (map[string]string, error) {
	var headers map[string]string
	found, err := s.getState(keyCredentials, &headers)
	if err != nil || !found {
		return nil, err
	}
	return headers, nil
}

func (s *Store) SetCredentials(headers map[string]string) error {
	return s.setState(keyCredentials, headers)
}

// --- settings ---

// Settings returns the stored settings merged over the defaults, so options
// added after an update pick up their default values.
func (s *Store) Settings() (models.Settings, error) {
	settings := models.DefaultSettings()
	_, err := s.getState(keySettings, &settings)
	return settings, err
}

func (s *Store) SaveSettings(settings models.Settings) error {
	return s.setState(keySettings, settings)
}

// EnsureDefaultSettings persists the defaults-merged settings, mirroring the
// install/update path of the UI surfaces.
func (s *Store) EnsureDefaultSettings() (models.Settings, error) {
	settings, err := s.Settings()
	if err != nil {
		return settings, err
	}
	return settings, s.SaveSettings(settings)
}

// --- sync watermark ---

// Watermark returns the last processed transaction's modification time in
// unix milliseconds, 0 when no sync has run yet.
func (s *Store) Watermark() (int64, error) {
	var ts int64
	_, err := s.getState(keyWatermark, &ts)
	return ts, err
}

func (s *Store) SetWatermark(ts int64) error {
	return s.setState(keyWatermark, ts)
}

// --- refresh flags and timestamps ---

// BeginRefresh sets the flow's in-progress flag. It returns false without
// touching the flag when the flow is already running.
func (s *Store) BeginRefresh(flag string) (bool, error) {
	var running bool
	if _, err := s.getState(flag, &running); err != nil {
		return false, err
	}
	if running {
		return false, nil
	}
	return true, s.setState(flag, true)
}

func (s *Store) EndRefresh(flag string) error {
	return s.setState(flag, false)
}

func (s *Store) RefreshInProgress(flag string) (bool, error) {
	var running bool
	_, err := s.getState(flag, &running)
	return running, err
}

// ResetRefreshFlags force-clears both in-progress flags. Called once at
// startup: a restart mid-flow leaves them stale and nothing can still be
// running in a fresh process.
func (s *Store) ResetRefreshFlags() error {
	if err := s.setState(FlagFavorites, false); err != nil {
		return err
	}
	return s.setState(FlagOwned, false)
}

func (s *Store) SetLastUpdate(t time.Time) error {
	return s.setState(keyLastUpdate, t.UnixMilli())
}

func (s *Store) LastUpdate() (int64, error) {
	var ts int64
	_, err := s.getState(keyLastUpdate, &ts)
	return ts, err
}

func (s *Store) SetLastDashboardUpdate(t time.Time) error {
	return s.setState(keyLastDashboardUpdate, t.UnixMilli())
}

func (s *Store) LastDashboardUpdate() (int64, error) {
	var ts int64
	_, err := s.getState(keyLastDashboardUpdate, &ts)
	return ts, err
}

// --- market records ---

func (s *Store) MarketRecords() (map[string]models.MarketRecord, error) {
	var rows []models.MarketRecord
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load market records: %w", err)
	}
	out := make(map[string]models.MarketRecord, len(rows))
	for _, r := range rows {
		out[r.ItemID] = r
	}
	return out, nil
}

func (s *Store) MarketRecord(itemID string) (*models.MarketRecord, error) {
	var row models.MarketRecord
	err := s.db.Where("item_id = ?", itemID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load market record %s: %w", itemID, err)
	}
	return &row, nil
}

func (s *Store) UpsertMarketRecords(records []models.MarketRecord) error {
	if len(records) == 0 {
		return nil
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_id"}},
		UpdateAll: true,
	}).Create(&records).Error
	if err != nil {
		return fmt.Errorf("upsert market records: %w", err)
	}
	return nil
}

// --- personal records ---

func (s *Store) PersonalRecords() (map[string]models.PersonalRecord, error) {
	var rows []models.PersonalRecord
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load personal records: %w", err)
	}
	out := make(map[string]models.PersonalRecord, len(rows))
	for _, r := range rows {
		out[r.ItemID] = r
	}
	return out, nil
}

func (s *Store) UpsertPersonalRecords(records []models.PersonalRecord) error {
	if len(records) == 0 {
		return nil
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_id"}},
		UpdateAll: true,
	}).Create(&records).Error
	if err != nil {
		return fmt.Errorf("upsert personal records: %w", err)
	}
	return nil
}

// --- favorites ---

func (s *Store) FavoriteIDs() ([]string, error) {
	var ids []string
	if err := s.db.Model(&models.Favorite{}).Pluck("item_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("load favorites: %w", err)
	}
	return ids, nil
}

// ToggleFavorite flips the favorite mark for an item and reports whether it
// is now favorited.
func (s *Store) ToggleFavorite(itemID string) (bool, error) {
	var existing models.Favorite
	err := s.db.Where("item_id = ?", itemID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := s.db.Create(&models.Favorite{ItemID: itemID}).Error; err != nil {
			return false, fmt.Errorf("add favorite %s: %w", itemID, err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("load favorite %s: %w", itemID, err)
	}
	if err := s.db.Delete(&models.Favorite{}, "item_id = ?", itemID).Error; err != nil {
		return false, fmt.Errorf("remove favorite %s: %w", itemID, err)
	}
	return false, nil
}

// --- price alerts ---

func (s *Store) Alerts() ([]models.PriceAlert, error) {
	var rows []models.PriceAlert
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load alerts: %w", err)
	}
	return rows, nil
}

func (s *Store) UpsertAlert(alert models.PriceAlert) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_id"}},
		UpdateAll: true,
	}).Create(&alert).Error
	if err != nil {
		return fmt.Errorf("upsert alert %s: %w", alert.ItemID, err)
	}
	return nil
}

func (s *Store) DeleteAlert(itemID string) error {
	if err := s.db.Delete(&models.PriceAlert{}, "item_id = ?", itemID).Error; err != nil {
		return fmt.Errorf("delete alert %s: %w", itemID, err)
	}
	return nil
}

// --- owned items view ---

// ReplaceOwnedItems swaps in a freshly materialized dashboard view.
func (s *Store) ReplaceOwnedItems(items []models.OwnedItem) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.OwnedItem{}).Error; err != nil {
			return fmt.Errorf("clear owned items: %w", err)
		}
		if len(items) == 0 {
			return nil
		}
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("insert owned items: %w", err)
		}
		return nil
	})
}

func (s *Store) OwnedItems() ([]models.OwnedItem, error) {
	var rows []models.OwnedItem
	if err := s.db.Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load owned items: %w", err)
	}
	return rows, nil
}
