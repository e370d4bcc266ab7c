package dto

type AttachThumbnailRequestDTO struct {
	ThumbnailPath string `json:"thumbnail_path" binding:"required"`
}

type AssignBatchGroupRequestDTO struct {
	CreativeIDs  []string `json:"creative_ids" binding:"required,min=1"`
	BatchGroupID *string  `json:"batch_group_id"`
}

type CreateBatchGroupRequestDTO struct {
	Name string `json:"name" binding:"required,min=1,max=255"`
}
