// Package designer implements the project, token, flow and flow-editor
// operations behind the /api routes.
package designer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ayush/ivr-designer/internal/access"
	"github.com/ayush/ivr-designer/internal/apperr"
	"github.com/ayush/ivr-designer/internal/metrics"
	"github.com/ayush/ivr-designer/internal/models"
	"github.com/ayush/ivr-designer/internal/repository"
	"github.com/ayush/ivr-designer/internal/store"
)

// Service holds the designer operations. Every operation authorizes the
// caller through the access layer before reading or writing.
type Service struct {
	repos   *repository.Repositories
	authz   *access.Authorizer
	archive store.Archive
	metrics *metrics.Collector
	logger  *zap.Logger
}

// Option configures optional Service dependencies.
type Option func(*Service)

// WithArchive enables flow snapshots, exports of past versions and their cleanup.
func WithArchive(a store.Archive) Option {
	return func(s *Service) { s.archive = a }
}

func WithMetrics(c *metrics.Collector) Option {
	return func(s *Service) { s.metrics = c }
}

func NewService(repos *repository.Repositories, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		repos:  repos,
		authz:  access.NewAuthorizer(repos),
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func storageErr(msg string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Storage(msg, err)
}

func snapshotKey(flowID string, version int) string {
	return fmt.Sprintf("flows/%s/v%d.json", flowID, version)
}

// snapshot uploads the flow document to the archive. Failures are logged only.
func (s *Service) snapshot(ctx context.Context, flow *models.FlowWithNodes) {
	if s.archive == nil {
		return
	}
	data, err := json.MarshalIndent(flow, "", "  ")
	if err == nil {
		err = s.archive.Put(ctx, snapshotKey(flow.ID, flow.Version), data, "application/json")
	}
	if err != nil {
		s.logger.Warn("flow snapshot failed",
			zap.String("flow_id", flow.ID),
			zap.Int("version", flow.Version),
			zap.Error(err),
		)
	}
}

func (s *Service) dropSnapshots(ctx context.Context, flowID string) {
	if s.archive == nil {
		return
	}
	if err := s.archive.RemovePrefix(ctx, "flows/"+flowID+"/"); err != nil {
		s.logger.Warn("flow snapshot cleanup failed", zap.String("flow_id", flowID), zap.Error(err))
	}
}
