package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/tnqbao/gau-ads-orchestrator/http/controller"
	middlewares "github.com/tnqbao/gau-ads-orchestrator/http/middleware"
)

func SetupRouter(ctrl *controller.Controller) *gin.Engine {
	r := gin.Default()
	middles, err := middlewares.NewMiddlewares(ctrl)
	if err != nil {
		panic(err)
	}
	r.Use(middles.CORSMiddleware)

	r.GET("/api/v1/ads/health", ctrl.CheckHealth)

	apiRoutes := r.Group("/api/v1/ads")
	{
		apiRoutes.Use(middles.AuthMiddleware)

		uploadRoutes := apiRoutes.Group("/uploads")
		{
			uploadRoutes.POST("/", ctrl.UploadCreatives)
			uploadRoutes.POST("/drive", ctrl.ImportFromDrive)
			uploadRoutes.GET("/:id", ctrl.GetUploadSession)
			uploadRoutes.GET("/:id/events", ctrl.StreamUploadSession)
		}

		creativeRoutes := apiRoutes.Group("/creatives")
		{
			creativeRoutes.GET("/", ctrl.ListCreatives)
			creativeRoutes.PUT("/batch-group", ctrl.AssignBatchGroup)
			creativeRoutes.GET("/:id", ctrl.GetCreative)
			creativeRoutes.DELETE("/:id", ctrl.DeleteCreative)
			creativeRoutes.GET("/:id/accounts", ctrl.ListCreativeAccounts)
			creativeRoutes.PUT("/:id/thumbnail", ctrl.AttachThumbnail)
		}

		batchGroupRoutes := apiRoutes.Group("/batch-groups")
		{
			batchGroupRoutes.POST("/", ctrl.CreateBatchGroup)
			batchGroupRoutes.GET("/", ctrl.ListBatchGroups)
		}

		duplicationRoutes := apiRoutes.Group("/duplications")
		{
			duplicationRoutes.POST("/adsets", ctrl.DuplicateAdSet)
			duplicationRoutes.POST("/campaigns", ctrl.DuplicateCampaign)
			duplicationRoutes.GET("/jobs", ctrl.ListDuplicationJobs)
			duplicationRoutes.GET("/jobs/:id", ctrl.GetDuplicationJob)
			duplicationRoutes.GET("/batches/:id", ctrl.GetBatchStatus)
		}

		accountRoutes := apiRoutes.Group("/accounts/:account_id")
		{
			accountRoutes.GET("/objects", ctrl.GetAdCache)
			accountRoutes.POST("/objects/refresh", ctrl.RefreshAdCache)
			accountRoutes.GET("/usage", ctrl.GetAccountUsage)
		}
	}
	return r
}
