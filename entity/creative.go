package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type MimeClass string

const (
	MimeClassImage MimeClass = "image"
	MimeClassVideo MimeClass = "video"
)

// Creative is one distinct binary asset in the library, keyed by its content fingerprint.
type Creative struct {
	ID                uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Fingerprint       string         `json:"fingerprint" gorm:"type:varchar(64);not null;uniqueIndex"`
	OriginalName      string         `json:"original_name" gorm:"type:varchar(512);not null"`
	MimeClass         MimeClass      `json:"mime_class" gorm:"type:varchar(16);not null"`
	ContentType       string         `json:"content_type" gorm:"type:varchar(255)"`
	ByteSize          int64          `json:"byte_size" gorm:"not null"`
	CanonicalFilePath string         `json:"canonical_file_path" gorm:"type:varchar(1024);not null"` // fingerprint.ext under the library root
	ThumbnailPath     *string        `json:"thumbnail_path,omitempty" gorm:"type:varchar(1024)"`
	BatchGroupID      *uuid.UUID     `json:"batch_group_id,omitempty" gorm:"type:uuid;index"`
	Metadata          datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt         time.Time      `json:"created_at" gorm:"not null;autoCreateTime"`
	UpdatedAt         time.Time      `json:"updated_at" gorm:"autoUpdateTime"`

	BatchGroup *BatchGroup `json:"batch_group,omitempty" gorm:"foreignKey:BatchGroupID;constraint:OnDelete:SET NULL"`
}

func (c *Creative) IsVideo() bool {
	return c.MimeClass == MimeClassVideo
}

// BatchGroup is a user-facing folder used to organize library creatives.
type BatchGroup struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;autoCreateTime"`
}
