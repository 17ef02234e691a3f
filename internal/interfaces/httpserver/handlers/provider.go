package handlers

import (
	"github.com/rs/zerolog"

	"jan-server/services/media-ingest/internal/config"
)

// Provider wires HTTP handlers.
type Provider struct {
	Media *MediaHandler
}

func NewProvider(cfg *config.Config, service MediaService, log zerolog.Logger) *Provider {
	return &Provider{
		Media: NewMediaHandler(cfg, service, log),
	}
}
