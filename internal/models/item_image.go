package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ItemImage points at an object in storage. At most one image per item is
// primary, backed by a partial unique index.
type ItemImage struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	VendorID      uuid.UUID `gorm:"type:uuid;index;not null" json:"vendor_id"`
	ItemID        uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_item_images_one_primary,where:is_primary = true" json:"item_id"`
	URL           string    `gorm:"size:500;not null" json:"url"`
	Path          string    `gorm:"size:300;not null" json:"path"`
	ThumbnailURL  string    `gorm:"size:500" json:"thumbnail_url"`
	ThumbnailPath string    `gorm:"size:300" json:"thumbnail_path"`
	FileName      string    `gorm:"size:255;not null" json:"file_name"`
	FileSize      int64     `json:"file_size"`
	MimeType      string    `gorm:"size:50" json:"mime_type"`
	IsPrimary     bool      `gorm:"not null;default:false" json:"is_primary"`
	CreatedAt     time.Time `json:"created_at"`
}

func (i *ItemImage) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
