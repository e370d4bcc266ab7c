package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tnqbao/gau-ads-orchestrator/duplicator"
	"github.com/tnqbao/gau-ads-orchestrator/http/controller/dto"
	"github.com/tnqbao/gau-ads-orchestrator/utils"
)

// DuplicateAdSet answers 200 when the copy finished inline and 202 when batches were queued.
func (ctrl *Controller) DuplicateAdSet(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := ctrl.currentUser(c)
	if !ok {
		return
	}
	token, ok := ctrl.facebookToken(c)
	if !ok {
		return
	}

	var req dto.DuplicateAdSetRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSON400(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := ctrl.Service.Duplicator.DuplicateAdSet(ctx, req.SourceAdSetID, req.TargetCampaignID, duplicator.Options{
		DeepCopy:     req.DeepCopy,
		StatusOption: req.StatusOption,
		NewName:      req.NewName,
		AdAccountID:  req.AdAccountID,
		AccessToken:  token,
		UserID:       userID,
	})
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Duplication] Ad set %s failed", req.SourceAdSetID)
		respondError(c, err)
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Duplication] Ad set %s -> %s (%s)", req.SourceAdSetID, result.NewAdSetID, result.Strategy)
	c.JSON(statusForMode(result.Mode), result)
}

func (ctrl *Controller) DuplicateCampaign(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := ctrl.currentUser(c)
	if !ok {
		return
	}
	token, ok := ctrl.facebookToken(c)
	if !ok {
		return
	}

	var req dto.DuplicateCampaignRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSON400(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := ctrl.Service.Duplicator.DuplicateCampaign(ctx, req.SourceCampaignID, req.TargetAccountID, duplicator.Options{
		DeepCopy:     req.DeepCopy,
		StatusOption: req.StatusOption,
		NewName:      req.NewName,
		AdAccountID:  req.AdAccountID,
		AccessToken:  token,
		UserID:       userID,
	})
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Duplication] Campaign %s failed", req.SourceCampaignID)
		respondError(c, err)
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Duplication] Campaign %s -> %s (%s)", req.SourceCampaignID, result.NewCampaignID, result.Strategy)
	c.JSON(statusForMode(result.Mode), result)
}

func statusForMode(mode duplicator.Mode) int {
	if mode == duplicator.ModeAsync {
		return http.StatusAccepted
	}
	return http.StatusOK
}

func (ctrl *Controller) GetBatchStatus(c *gin.Context) {
	token, ok := ctrl.facebookToken(c)
	if !ok {
		return
	}
	status, err := ctrl.Service.Duplicator.GetBatchStatus(c.Request.Context(), c.Param("id"), token)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSON200(c, status)
}

func (ctrl *Controller) GetDuplicationJob(c *gin.Context) {
	userID, ok := ctrl.currentUser(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.JSON400(c, "Invalid job ID format")
		return
	}
	job, err := ctrl.Service.Duplicator.GetJob(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if job.UserID != userID {
		utils.JSON404(c, "Not found")
		return
	}
	utils.JSON200(c, job)
}

func (ctrl *Controller) ListDuplicationJobs(c *gin.Context) {
	userID, ok := ctrl.currentUser(c)
	if !ok {
		return
	}
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			utils.JSON400(c, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}
	jobs, err := ctrl.Repository.DuplicationJobRepo.ListByUser(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSON200(c, gin.H{"jobs": jobs})
}
