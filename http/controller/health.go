package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (ctrl *Controller) CheckHealth(c *gin.Context) {
	ctx := c.Request.Context()
	status := http.StatusOK
	body := gin.H{
		"status":   "ok",
		"breakers": ctrl.Service.Breakers.Snapshot(),
	}

	online, err := ctrl.Infra.Minio.HealthCheck(ctx)
	if err != nil {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[Health] MinIO check failed: %v", err)
		body["status"] = "degraded"
		body["minio"] = "unreachable"
	} else {
		body["minio_servers_online"] = online
	}

	if err := ctrl.Infra.Redis.Ping(ctx); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "unavailable"
		body["redis"] = "unreachable"
	}

	c.JSON(status, body)
}
