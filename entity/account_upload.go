package entity

import (
	"time"

	"github.com/google/uuid"
)

// AccountUpload records that a creative has been pushed to one ad account.
// Its existence is the only signal that the upload happened.
type AccountUpload struct {
	CreativeID        uuid.UUID `json:"creative_id" gorm:"type:uuid;primaryKey"`
	AdAccountID       string    `json:"ad_account_id" gorm:"type:varchar(64);primaryKey"`
	FacebookImageHash *string   `json:"facebook_image_hash,omitempty" gorm:"type:varchar(128)"`
	FacebookVideoID   *string   `json:"facebook_video_id,omitempty" gorm:"type:varchar(64)"`
	UploadedAt        time.Time `json:"uploaded_at" gorm:"not null"`

	Creative *Creative `json:"creative,omitempty" gorm:"foreignKey:CreativeID;constraint:OnDelete:CASCADE"`
}

// RemoteIDs are the identifiers Meta assigned to an uploaded creative.
type RemoteIDs struct {
	ImageHash string `json:"image_hash,omitempty"`
	VideoID   string `json:"video_id,omitempty"`
}

func (r RemoteIDs) IsEmpty() bool {
	return r.ImageHash == "" && r.VideoID == ""
}

func (a *AccountUpload) RemoteIDs() RemoteIDs {
	var ids RemoteIDs
	if a.FacebookImageHash != nil {
		ids.ImageHash = *a.FacebookImageHash
	}
	if a.FacebookVideoID != nil {
		ids.VideoID = *a.FacebookVideoID
	}
	return ids
}
