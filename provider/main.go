package provider

import (
	"github.com/tnqbao/gau-ads-orchestrator/config"
	"github.com/tnqbao/gau-ads-orchestrator/guard"
	"github.com/tnqbao/gau-ads-orchestrator/infra"
)

type Provider struct {
	Graph     *GraphClient
	Drive     *DriveClient
	Thumbnail *ThumbnailClient
	Breakers  *guard.Breakers
	Rate      *guard.RateTracker
}

var providerInstance *Provider

func InitProvider(cfg *config.EnvConfig, breakers *guard.Breakers, rate *guard.RateTracker, logger *infra.LoggerClient) *Provider {
	if providerInstance != nil {
		return providerInstance
	}

	providerInstance = &Provider{
		Graph:     NewGraphClient(cfg, breakers, rate, logger),
		Drive:     NewDriveClient(cfg, breakers),
		Thumbnail: NewThumbnailClient(cfg, breakers),
		Breakers:  breakers,
		Rate:      rate,
	}
	return providerInstance
}

func GetProvider() *Provider {
	if providerInstance == nil {
		panic("Provider not initialized. Call InitProvider() first.")
	}
	return providerInstance
}
