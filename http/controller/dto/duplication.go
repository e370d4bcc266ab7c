package dto

type DuplicateAdSetRequestDTO struct {
	SourceAdSetID    string `json:"source_adset_id" binding:"required"`
	TargetCampaignID string `json:"target_campaign_id" binding:"required"`
	AdAccountID      string `json:"ad_account_id" binding:"required"`
	DeepCopy         bool   `json:"deep_copy"`
	StatusOption     string `json:"status_option" binding:"omitempty,oneof=ACTIVE PAUSED INHERITED_FROM_SOURCE"`
	NewName          string `json:"new_name" binding:"max=400"`
}

type DuplicateCampaignRequestDTO struct {
	SourceCampaignID string `json:"source_campaign_id" binding:"required"`
	AdAccountID      string `json:"ad_account_id" binding:"required"`
	TargetAccountID  string `json:"target_account_id"`
	DeepCopy         bool   `json:"deep_copy"`
	StatusOption     string `json:"status_option" binding:"omitempty,oneof=ACTIVE PAUSED INHERITED_FROM_SOURCE"`
	NewName          string `json:"new_name" binding:"max=400"`
}
