package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/blog-platform/internal/model"
)

// AuditSink records status and role changes.
type AuditSink interface {
	Record(ctx context.Context, rec model.AuditRecord) error
}

// ZapAuditSink writes audit records to the application log.
type ZapAuditSink struct {
	log *zap.Logger
}

func NewZapAuditSink(log *zap.Logger) *ZapAuditSink {
	return &ZapAuditSink{log: log.Named("audit")}
}

func (s *ZapAuditSink) Record(_ context.Context, rec model.AuditRecord) error {
	s.log.Info("account changed",
		zap.String("actor_id", rec.ActorID),
		zap.String("actor_role", string(rec.ActorRole)),
		zap.String("target_id", rec.TargetID),
		zap.String("field", rec.Field),
		zap.String("from", rec.From),
		zap.String("to", rec.To),
		zap.Time("at", rec.At),
	)
	return nil
}

// MultiAuditSink hands each record to every sink and joins their errors.
type MultiAuditSink []AuditSink

func (m MultiAuditSink) Record(ctx context.Context, rec model.AuditRecord) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
