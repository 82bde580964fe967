package database

import (
	"errors"
	"testing"

	"blogpost-backend/pkg/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type widget struct {
	ID   string `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex"`
}

func TestNewInMemory_IsolatedAndTranslatesErrors(t *testing.T) {
	db, err := NewInMemory(uuid.NewString())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&widget{}))

	require.NoError(t, db.Create(&widget{ID: "1", Name: "a"}).Error)
	err = db.Create(&widget{ID: "2", Name: "a"}).Error
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey))

	other, err := NewInMemory(uuid.NewString())
	require.NoError(t, err)
	assert.False(t, other.Migrator().HasTable(&widget{}))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(&config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}
