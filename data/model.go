package data

import (
	"time"

	"github.com/pitabwire/util"
	"github.com/rs/xid"
	"gorm.io/gorm"
)

type BaseModelI interface {
	GetID() string
	GetVersion() uint
}

// BaseModel base table struct to be extended by other models.
type BaseModel struct {
	ID         string `gorm:"type:varchar(50);primary_key"`
	CreatedAt  time.Time
	ModifiedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
	Version    uint `gorm:"DEFAULT 0"`
}

func (model *BaseModel) GetID() string {
	return model.ID
}

func (model *BaseModel) GetVersion() uint {
	return model.Version
}

// GenID creates a new id for model if its not existent.
func (model *BaseModel) GenID() {
	if model.ID == "" {
		model.ID = util.IDString()
	}
}

// ValidXID Validates that the supplied string is an xid.
func (model *BaseModel) ValidXID(id string) bool {
	_, err := xid.FromString(id)
	return err == nil
}

// BeforeSave Ensures we update the time stamps on any save.
func (model *BaseModel) BeforeSave(db *gorm.DB) error {
	return model.BeforeCreate(db)
}

func (model *BaseModel) BeforeCreate(_ *gorm.DB) error {
	if model.Version <= 0 {
		model.CreatedAt = time.Now()
		model.ModifiedAt = time.Now()
		model.Version = 1
	}

	model.GenID()
	return nil
}

// BeforeUpdate Updates time stamp every time the model is mutated.
func (model *BaseModel) BeforeUpdate(_ *gorm.DB) error {
	model.ModifiedAt = time.Now()
	model.Version++
	return nil
}
