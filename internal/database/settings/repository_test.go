package settings

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vrwarp/versicle/internal/entities"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	dbPath := filepath.Join(t.TempDir(), "settings.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.Setting{})
	require.NoError(t, err)

	repo := NewRepository(db)

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}

	return repo, cleanup
}

func TestRepository_Set_New(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	err := repo.Set("device_id", "device-1")
	require.NoError(t, err)

	value, ok, err := repo.Get("device_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "device-1", value)
}

func TestRepository_Set_Update(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.Set("device_name", "laptop"))
	require.NoError(t, repo.Set("device_name", "desk"))

	value, ok, err := repo.Get("device_name")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "desk", value)
}

func TestRepository_Get_Missing(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, ok, err := repo.Get("nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepository_Delete(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.Set("k", "v"))
	require.NoError(t, repo.Delete("k"))

	_, ok, err := repo.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepository_SchemaVersion_Unset(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	version, err := repo.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 0, version)
}

func TestRepository_SchemaVersion_Monotonic(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.SetSchemaVersion(2))

	// A lower write must not roll the marker back.
	require.NoError(t, repo.SetSchemaVersion(1))

	version, err := repo.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	require.NoError(t, repo.SetSchemaVersion(3))
	version, err = repo.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 3, version)
}
