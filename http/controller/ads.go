package controller

import (
	"github.com/gin-gonic/gin"

	"github.com/tnqbao/gau-ads-orchestrator/utils"
)

func (ctrl *Controller) GetAdCache(c *gin.Context) {
	token, ok := ctrl.facebookToken(c)
	if !ok {
		return
	}
	snapshot, err := ctrl.Service.AdCache.Get(c.Request.Context(), c.Param("account_id"), token)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSON200(c, snapshot)
}

// RefreshAdCache reloads the account's objects. Concurrent refreshes share one load.
func (ctrl *Controller) RefreshAdCache(c *gin.Context) {
	ctx := c.Request.Context()
	token, ok := ctrl.facebookToken(c)
	if !ok {
		return
	}
	accountID := c.Param("account_id")
	snapshot, shared, err := ctrl.Service.AdCache.Refresh(ctx, accountID, token)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[AdCache] Refresh of %s failed", accountID)
		respondError(c, err)
		return
	}
	utils.JSON200(c, gin.H{"snapshot": snapshot, "shared": shared})
}

func (ctrl *Controller) GetAccountUsage(c *gin.Context) {
	accountID := utils.NormalizeAdAccountID(c.Param("account_id"))
	utils.JSON200(c, gin.H{
		"ad_account_id": accountID,
		"usage":         ctrl.Service.Rate.Usage(accountID),
	})
}
