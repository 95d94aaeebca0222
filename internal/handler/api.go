package handler

import (
	"github.com/tentpost/internal/service"
	"go.uber.org/zap"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	pipeline    *service.Pipeline
	versions    *service.VersionStore
	attachments *service.AttachmentStore
	accounts    *service.AccountService
	logger      *zap.Logger
}

// NewAPI constructs a handler set on top of the ingestion pipeline.
func NewAPI(pipeline *service.Pipeline, accounts *service.AccountService, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		pipeline:    pipeline,
		versions:    pipeline.Versions(),
		attachments: pipeline.Attachments(),
		accounts:    accounts,
		logger:      logger,
	}
}
