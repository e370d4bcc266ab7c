package dto

type DriveImportRequestDTO struct {
	AdAccountID  string   `json:"ad_account_id" binding:"required"`
	FileIDs      []string `json:"file_ids" binding:"required,min=1,max=50"`
	OAuthToken   string   `json:"oauth_token" binding:"required"`
	BatchGroupID string   `json:"batch_group_id"`
}

type UploadAcceptedResponseDTO struct {
	SessionID  string `json:"session_id"`
	TotalFiles int    `json:"total_files"`
	EventsURL  string `json:"events_url"`
}
