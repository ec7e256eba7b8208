// Package audit records privileged mutations in the append-only admin log.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/coup-study/coup-api/internal/metrics"
	"github.com/coup-study/coup-api/internal/models"
	"github.com/coup-study/coup-api/internal/repository"
)

const writeTimeout = 5 * time.Second

type clientIPKey struct{}

// WithClientIP attaches the caller's address for later audit entries.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// Entry describes one privileged mutation.
type Entry struct {
	AdminID    uint64
	Action     string
	TargetType models.TargetType
	TargetID   uint64
	Reason     string
}

// Auditor writes admin log entries. It is never consulted for decisions.
type Auditor struct {
	logs    repository.AdminLogRepository
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewAuditor(logs repository.AdminLogRepository, log *zap.Logger, m *metrics.Metrics) *Auditor {
	return &Auditor{
		logs:    logs,
		log:     log.Named("audit"),
		metrics: m,
	}
}

// Record writes the entry before returning. It is called after the mutation
// committed: a failed write is logged at error level and counted, and the
// mutation stays in place. The write ignores ctx cancellation so that a
// client hanging up after the commit does not lose the entry.
func (a *Auditor) Record(ctx context.Context, entry Entry) {
	if a == nil {
		return
	}

	row := &models.AdminLog{
		AdminID:    entry.AdminID,
		Action:     entry.Action,
		TargetType: entry.TargetType,
		TargetID:   entry.TargetID,
		Reason:     entry.Reason,
		IPAddress:  ClientIP(ctx),
	}

	fields := []zap.Field{
		zap.Uint64("admin_id", entry.AdminID),
		zap.String("action", entry.Action),
		zap.String("target_type", string(entry.TargetType)),
		zap.Uint64("target_id", entry.TargetID),
		zap.String("ip", row.IPAddress),
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := a.logs.Append(writeCtx, row); err != nil {
		a.metrics.AuditWriteFailed()
		a.log.Error("failed to store admin log entry", append(fields, zap.Error(err))...)
		return
	}

	a.log.Info("admin action", append(fields, zap.Uint64("entry_id", row.ID))...)
}
