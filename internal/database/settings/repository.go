// Package settings provides database operations for installation-local
// settings: the migration version marker, the device identity and similar
// single-row values. These never replicate; device-shared preferences live
// in the document's settings collection instead.
package settings

import (
	"strconv"

	"gorm.io/gorm"

	"github.com/vrwarp/versicle/internal/database"
	"github.com/vrwarp/versicle/internal/entities"
)

// Repository handles all settings table operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new settings repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to an open transaction so settings
// writes can participate in a surrounding WriteTx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Get retrieves a setting value by key. A missing key is ("", false, nil).
func (r *Repository) Get(key string) (string, bool, error) {
	var setting entities.Setting
	err := r.db.Where("key = ?", key).First(&setting).Error
	if database.IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, database.Classify(err)
	}
	return setting.Value, true, nil
}

// Set creates or updates a setting.
func (r *Repository) Set(key, value string) error {
	var setting entities.Setting
	result := r.db.Where("key = ?", key).First(&setting)

	if database.IsNotFound(result.Error) {
		setting = entities.Setting{
			Key:   key,
			Value: value,
		}
		return database.Classify(r.db.Create(&setting).Error)
	} else if result.Error != nil {
		return database.Classify(result.Error)
	}

	setting.Value = value
	return database.Classify(r.db.Save(&setting).Error)
}

// Delete removes a setting by key.
func (r *Repository) Delete(key string) error {
	return database.Classify(r.db.Where("key = ?", key).Delete(&entities.Setting{}).Error)
}

// SchemaVersion returns the migration version marker, 0 when unset.
func (r *Repository) SchemaVersion() (int, error) {
	value, ok, err := r.Get(entities.SettingKeySchemaVersion)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	version, err := strconv.Atoi(value)
	if err != nil {
		return 0, database.ErrDatabase.Wrap(err)
	}
	return version, nil
}

// SetSchemaVersion advances the version marker. The marker is monotonic: a
// write below the stored version is silently ignored so a stale writer can
// never roll an installation back.
func (r *Repository) SetSchemaVersion(version int) error {
	current, err := r.SchemaVersion()
	if err != nil {
		return err
	}
	if version <= current {
		return nil
	}
	return r.Set(entities.SettingKeySchemaVersion, strconv.Itoa(version))
}
