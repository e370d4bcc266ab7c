package controller

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tnqbao/gau-ads-orchestrator/entity"
	"github.com/tnqbao/gau-ads-orchestrator/http/controller/dto"
	"github.com/tnqbao/gau-ads-orchestrator/repository"
	"github.com/tnqbao/gau-ads-orchestrator/utils"
)

const defaultCreativePageSize = 50

func (ctrl *Controller) ListCreatives(c *gin.Context) {
	ctx := c.Request.Context()

	filter := repository.CreativeFilter{Limit: defaultCreativePageSize}
	if raw := c.Query("batch_group_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			utils.JSON400(c, "Invalid batch_group_id format")
			return
		}
		filter.BatchGroupID = &id
	}
	switch class := entity.MimeClass(c.Query("mime_class")); class {
	case "", entity.MimeClassImage, entity.MimeClassVideo:
		filter.MimeClass = class
	default:
		utils.JSON400(c, "mime_class must be image or video")
		return
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 500 {
			utils.JSON400(c, "limit must be between 1 and 500")
			return
		}
		filter.Limit = limit
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			utils.JSON400(c, "offset must be a non-negative integer")
			return
		}
		filter.Offset = offset
	}

	creatives, err := ctrl.Service.Library.List(ctx, filter)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Library] Failed to list creatives")
		respondError(c, err)
		return
	}
	utils.JSON200(c, gin.H{
		"creatives": creatives,
		"limit":     filter.Limit,
		"offset":    filter.Offset,
	})
}

func (ctrl *Controller) GetCreative(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.JSON400(c, "Invalid creative ID format")
		return
	}
	creative, err := ctrl.Service.Library.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSON200(c, creative)
}

func (ctrl *Controller) DeleteCreative(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.JSON400(c, "Invalid creative ID format")
		return
	}
	if err := ctrl.Service.Library.Delete(ctx, id); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Library] Failed to delete creative %s", id)
		respondError(c, err)
		return
	}
	utils.JSON200(c, gin.H{"message": "Creative deleted successfully"})
}

// ListCreativeAccounts returns every ad account the creative was pushed to with its remote ids.
func (ctrl *Controller) ListCreativeAccounts(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.JSON400(c, "Invalid creative ID format")
		return
	}
	if _, err := ctrl.Service.Library.Get(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	uploads, err := ctrl.Service.Ledger.Accounts(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSON200(c, gin.H{"creative_id": id, "accounts": uploads})
}

func (ctrl *Controller) AttachThumbnail(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.JSON400(c, "Invalid creative ID format")
		return
	}
	var req dto.AttachThumbnailRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSON400(c, "Invalid request body: "+err.Error())
		return
	}
	if _, err := ctrl.Service.Library.Get(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	if err := ctrl.Service.Library.AttachThumbnail(ctx, id, req.ThumbnailPath); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Library] Failed to attach thumbnail to %s", id)
		respondError(c, err)
		return
	}
	utils.JSON200(c, gin.H{"message": "Thumbnail attached"})
}

func (ctrl *Controller) AssignBatchGroup(c *gin.Context) {
	ctx := c.Request.Context()
	var req dto.AssignBatchGroupRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSON400(c, "Invalid request body: "+err.Error())
		return
	}

	ids := make([]uuid.UUID, 0, len(req.CreativeIDs))
	for _, raw := range req.CreativeIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			utils.JSON400(c, "Invalid creative ID format: "+raw)
			return
		}
		ids = append(ids, id)
	}

	var groupID *uuid.UUID
	if req.BatchGroupID != nil {
		parsed, err := parseOptionalUUID(*req.BatchGroupID)
		if err != nil {
			utils.JSON400(c, "Invalid batch_group_id format")
			return
		}
		groupID = parsed
	}
	if groupID != nil {
		group, err := ctrl.Repository.BatchGroupRepo.FindByID(ctx, *groupID)
		if err != nil {
			respondError(c, err)
			return
		}
		if group == nil {
			utils.JSON404(c, "Batch group not found")
			return
		}
	}

	updated, err := ctrl.Service.Library.AssignBatchGroup(ctx, ids, groupID)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Library] Failed to assign batch group")
		respondError(c, err)
		return
	}
	utils.JSON200(c, gin.H{"updated": updated})
}

func (ctrl *Controller) CreateBatchGroup(c *gin.Context) {
	ctx := c.Request.Context()
	var req dto.CreateBatchGroupRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSON400(c, "Invalid request body: "+err.Error())
		return
	}
	group := &entity.BatchGroup{ID: uuid.New(), Name: req.Name}
	if err := ctrl.Repository.BatchGroupRepo.Create(ctx, group); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Library] Failed to create batch group %q", req.Name)
		respondError(c, err)
		return
	}
	utils.JSON201(c, group)
}

func (ctrl *Controller) ListBatchGroups(c *gin.Context) {
	groups, err := ctrl.Repository.BatchGroupRepo.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSON200(c, gin.H{"batch_groups": groups})
}
