package stations

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kitchenlinehq/kitchenline-backend/pkg/db/models"
)

func setupStationsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	stations := `
CREATE TABLE IF NOT EXISTS stations (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  type TEXT NOT NULL DEFAULT 'general',
  position INTEGER NOT NULL DEFAULT 0,
  color TEXT,
  active INTEGER NOT NULL DEFAULT 1,
  settings TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(stations).Error)
	return db
}

func seedStation(t *testing.T, db *gorm.DB, name string, position int, active bool) models.Station {
	t.Helper()
	station := models.Station{
		ID:       uuid.New(),
		Name:     name,
		Position: position,
		Active:   active,
	}
	require.NoError(t, db.Create(&station).Error)
	return station
}

func TestRepositoryListActiveOrdersByPosition(t *testing.T) {
	db := setupStationsTestDB(t)
	repo := NewRepository(db)

	seedStation(t, db, "expo", 3, true)
	grill := seedStation(t, db, "grill", 1, true)
	seedStation(t, db, "retired fryer", 2, false)
	salad := seedStation(t, db, "salad", 2, true)

	rows, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, grill.ID, rows[0].ID)
	assert.Equal(t, salad.ID, rows[1].ID)
	assert.Equal(t, "expo", rows[2].Name)
}

func TestRepositoryFindByID(t *testing.T) {
	db := setupStationsTestDB(t)
	repo := NewRepository(db)

	station := seedStation(t, db, "grill", 1, true)

	found, err := repo.FindByID(context.Background(), station.ID)
	require.NoError(t, err)
	assert.Equal(t, station.Name, found.Name)

	_, err = repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryPersistsInactiveFlag(t *testing.T) {
	db := setupStationsTestDB(t)

	retired := seedStation(t, db, "retired fryer", 5, false)

	var stored models.Station
	require.NoError(t, db.First(&stored, "id = ?", retired.ID).Error)
	assert.False(t, stored.Active)
}
