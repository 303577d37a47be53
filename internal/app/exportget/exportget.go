package exportget

import (
	"context"
	"fmt"

	"github.com/slok/mlprobe/internal/log"
	"github.com/slok/mlprobe/internal/model"
	"github.com/slok/mlprobe/internal/storage"
)

// ServiceConfig is the configuration for the export get service.
type ServiceConfig struct {
	Store  storage.ExportStore
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Store == nil {
		return fmt.Errorf("export store is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Service reads the results a worker exported.
type Service struct {
	store  storage.ExportStore
	logger log.Logger
}

// NewService creates a new export get service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		store:  cfg.Store,
		logger: cfg.Logger,
	}, nil
}

// Request represents the export get request parameters.
type Request struct {
	Origin      string
	RequesterID string
}

// Run gets the export of a requester.
func (s *Service) Run(ctx context.Context, req Request) (*model.Export, error) {
	if req.Origin == "" {
		return nil, fmt.Errorf("origin is required: %w", model.ErrNotValid)
	}

	if req.RequesterID == "" {
		return nil, fmt.Errorf("requester id is required: %w", model.ErrNotValid)
	}

	raw, err := s.store.GetItem(ctx, req.Origin, req.RequesterID)
	if err != nil {
		return nil, fmt.Errorf("could not get export: %w", err)
	}

	export := &model.Export{RequesterID: req.RequesterID, Value: raw}
	if _, err := export.Results(); err != nil {
		s.logger.Debugf("Export of %s is not a results list: %s", req.RequesterID, err)
	}

	return export, nil
}
