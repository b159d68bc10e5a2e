package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"courtbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestDB_ErrorPaths(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := NewDB(filepath.Join(t.TempDir(), "err.db"), &logger)
	assert.NoError(t, err)
	db.Close() // closed handle forces every call into its error branch

	ctx := context.Background()
	date := time.Now()

	t.Run("InsertSlots", func(t *testing.T) {
		_, err := db.InsertSlots(ctx, []models.Slot{makeSlot(1, date, "09:00", "09:45")}, 10)
		assert.Error(t, err)
	})

	t.Run("DeleteAvailableSlots", func(t *testing.T) {
		_, err := db.DeleteAvailableSlots(ctx, 1, date, date.AddDate(0, 0, 1))
		assert.Error(t, err)
	})

	t.Run("ClaimSlot", func(t *testing.T) {
		_, err := db.ClaimSlot(ctx, 1, "p", "r")
		assert.Error(t, err)
	})

	t.Run("GetBlockingSlots", func(t *testing.T) {
		_, err := db.GetBlockingSlots(ctx, 1, date)
		assert.Error(t, err)
	})

	t.Run("CreateSchedule", func(t *testing.T) {
		s := &models.CoachSchedule{CoachID: 1, Weekday: time.Monday, StartTime: "09:00", EndTime: "10:00", SessionMinutes: 60}
		assert.Error(t, db.CreateSchedule(ctx, s))
	})

	t.Run("CreateSyncTask", func(t *testing.T) {
		assert.Error(t, db.CreateSyncTask(ctx, &models.SyncTask{TaskType: "x", Status: "pending"}))
	})

	t.Run("CreateOrUpdateCoach", func(t *testing.T) {
		assert.Error(t, db.CreateOrUpdateCoach(ctx, &models.Coach{ID: 1, Name: "A"}))
	})
}

// Минимальный драйвер, у которого вставка проходит, а LastInsertId падает.
type noIDDriver struct{}

func (noIDDriver) Open(string) (driver.Conn, error) { return noIDConn{}, nil }

type noIDConn struct{}

func (noIDConn) Prepare(string) (driver.Stmt, error) { return noIDStmt{}, nil }
func (noIDConn) Close() error                        { return nil }
func (noIDConn) Begin() (driver.Tx, error)           { return nil, errors.New("transactions not supported") }

type noIDStmt struct{}

func (noIDStmt) Close() error  { return nil }
func (noIDStmt) NumInput() int { return -1 }
func (noIDStmt) Exec([]driver.Value) (driver.Result, error) {
	return noIDResult{}, nil
}
func (noIDStmt) Query([]driver.Value) (driver.Rows, error) {
	return nil, errors.New("queries not supported")
}

type noIDResult struct{}

func (noIDResult) LastInsertId() (int64, error) { return 0, errors.New("LastInsertId is not supported") }
func (noIDResult) RowsAffected() (int64, error) { return 1, nil }

func TestInsertReturningID_LastInsertIDError(t *testing.T) {
	sql.Register("noid", noIDDriver{})
	sqlDB, err := sql.Open("noid", "")
	assert.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db := &DB{DB: sqlDB, driver: "sqlite3", coachCache: map[int64]models.Coach{}}
	_, err = db.insertReturningID(context.Background(), "INSERT INTO slots (coach_id) VALUES (?)", 1)
	assert.ErrorContains(t, err, "not supported")
}
