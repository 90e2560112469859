package entities

import (
	"time"
)

type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"uniqueIndex;size:100" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// Known setting keys
const (
	// SettingKeySchemaVersion is the migration version marker. It only ever
	// increases; the settings repository enforces the monotonic guard.
	SettingKeySchemaVersion = "schema_version"

	// SettingKeyDeviceID holds this installation's stable device identity.
	SettingKeyDeviceID = "device_id"

	// SettingKeyLastCheckpointAt records when the update log was last
	// checkpointed, surfaced by the sync status endpoint.
	SettingKeyLastCheckpointAt = "last_checkpoint_at"
)
