package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/coup-study/coup-api/internal/database"
	"github.com/coup-study/coup-api/internal/metrics"
	"github.com/coup-study/coup-api/internal/models"
	"github.com/coup-study/coup-api/internal/repository"
)

type failingLogRepository struct{}

func (failingLogRepository) Append(context.Context, *models.AdminLog) error {
	return errors.New("disk full")
}

func (failingLogRepository) Recent(context.Context, repository.AdminLogFilter) ([]models.AdminLog, error) {
	return nil, nil
}

func TestRecord_WritesEntryWithClientIP(t *testing.T) {
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	logs := repository.NewAdminLogRepository(db)
	auditor := NewAuditor(logs, zap.NewNop(), metrics.New(prometheus.NewRegistry()))

	ctx := WithClientIP(context.Background(), "203.0.113.9")
	auditor.Record(ctx, Entry{AdminID: 1, Action: models.ActionUserStatus, TargetType: models.TargetUser, TargetID: 7, Reason: "spam"})

	entries, err := logs.Recent(context.Background(), repository.AdminLogFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(1), entries[0].AdminID)
	assert.Equal(t, models.ActionUserStatus, entries[0].Action)
	assert.Equal(t, uint64(7), entries[0].TargetID)
	assert.Equal(t, "203.0.113.9", entries[0].IPAddress)
}

func TestRecord_CanceledContextStillWrites(t *testing.T) {
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	logs := repository.NewAdminLogRepository(db)
	auditor := NewAuditor(logs, zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	auditor.Record(ctx, Entry{AdminID: 1, Action: models.ActionStudyDelete, TargetType: models.TargetStudy, TargetID: 3})

	entries, err := logs.Recent(context.Background(), repository.AdminLogFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestRecord_FailureIsSurfacedToOperators(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	m := metrics.New(prometheus.NewRegistry())
	auditor := NewAuditor(failingLogRepository{}, zap.New(core), m)

	assert.NotPanics(t, func() {
		auditor.Record(context.Background(), Entry{AdminID: 1, Action: models.ActionUserStatus, TargetType: models.TargetUser, TargetID: 2})
	})

	errorsLogged := observed.FilterLevelExact(zapcore.ErrorLevel).FilterMessage("failed to store admin log entry")
	require.Equal(t, 1, errorsLogged.Len())
	assert.Equal(t, "user.status", errorsLogged.All()[0].ContextMap()["action"])
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AuditWriteFailures))
}

func TestRecord_NilAuditor(t *testing.T) {
	var auditor *Auditor
	assert.NotPanics(t, func() {
		auditor.Record(context.Background(), Entry{})
	})
}
