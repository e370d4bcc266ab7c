package middlewares

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/tnqbao/gau-ads-orchestrator/config"
	"github.com/tnqbao/gau-ads-orchestrator/utils"
)

func CORSMiddleware(cfg *config.EnvConfig) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()

	origins := allowedOrigins(cfg)
	if len(origins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", utils.FacebookTokenHeader, "Last-Event-ID"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	corsConfig.MaxAge = 12 * time.Hour

	return cors.New(corsConfig)
}

// allowedOrigins reads ALLOWED_DOMAINS as a comma separated list; GLOBAL_DOMAIN is always allowed.
func allowedOrigins(cfg *config.EnvConfig) []string {
	var origins []string
	for _, domain := range strings.Split(cfg.CORS.AllowDomains, ",") {
		if domain = strings.TrimSpace(domain); domain != "" {
			origins = append(origins, domain)
		}
	}
	if cfg.CORS.GlobalDomain != "" {
		origins = append(origins, cfg.CORS.GlobalDomain)
	}
	return origins
}
