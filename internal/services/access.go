package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/coup-study/coup-api/internal/audit"
	"github.com/coup-study/coup-api/internal/authz"
	apierrors "github.com/coup-study/coup-api/internal/errors"
	"github.com/coup-study/coup-api/internal/metrics"
	"github.com/coup-study/coup-api/internal/models"
	"github.com/coup-study/coup-api/internal/repository"
)

// Guard runs every authorization decision. It re-reads the caller's
// membership for each check and never caches it.
type Guard struct {
	engine  *authz.Engine
	members repository.MembershipRepository
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewGuard(engine *authz.Engine, members repository.MembershipRepository, m *metrics.Metrics, log *zap.Logger) *Guard {
	return &Guard{
		engine:  engine,
		members: members,
		metrics: m,
		log:     log.Named("authz"),
	}
}

// Check authorizes actor. For study-scoped resources the actor's current
// membership is loaded unless the caller already supplied it. A denial is
// returned as a NotAuthorized error carrying the reason.
func (g *Guard) Check(ctx context.Context, actor *models.User, capability authz.Capability, res authz.Resource) (authz.Decision, error) {
	if res.StudyID != 0 && res.Membership == nil && actor != nil {
		member, err := g.members.FindOpen(ctx, res.StudyID, actor.ID)
		switch {
		case err == nil:
			res.Membership = member
		case !isNotFound(err):
			return authz.Decision{}, fmt.Errorf("failed to load membership: %w", err)
		}
	}

	return g.decide(actor, capability, res)
}

// recordGlobal writes an admin log entry for a mutation that was allowed
// only through the platform admin rule. Changes made by a study's own
// managers, or by the author of the resource, are not admin actions.
func recordGlobal(ctx context.Context, auditor *audit.Auditor, actor *models.User, decision authz.Decision, entry audit.Entry) {
	if actor == nil || decision.Via != authz.ViaGlobalRole {
		return
	}
	entry.AdminID = actor.ID
	auditor.Record(ctx, entry)
}

// CheckInternal authorizes a machine-to-machine call by its shared key.
func (g *Guard) CheckInternal(key string) error {
	_, err := g.decide(nil, authz.CapInternalService, authz.Resource{Kind: authz.KindPlatform, InternalKey: key})
	return err
}

func (g *Guard) decide(actor *models.User, capability authz.Capability, res authz.Resource) (authz.Decision, error) {
	d := g.engine.Authorize(actor, capability, res)

	detail := string(d.Via)
	if !d.Allowed {
		detail = string(d.Reason)
	}
	g.metrics.ObserveDecision(string(capability), d.Allowed, detail)

	if !d.Allowed {
		var actorID uint64
		if actor != nil {
			actorID = actor.ID
		}
		g.log.Debug("access denied",
			zap.Uint64("actor_id", actorID),
			zap.String("capability", string(capability)),
			zap.String("resource", string(res.Kind)),
			zap.Uint64("study_id", res.StudyID),
			zap.String("reason", string(d.Reason)))
		return d, apierrors.NotAuthorizedError(string(d.Reason))
	}
	return d, nil
}

func loadStudy(ctx context.Context, studies repository.StudyRepository, id uint64) (*models.Study, error) {
	study, err := studies.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrStudyNotFound
		}
		return nil, fmt.Errorf("failed to find study: %w", err)
	}
	return study, nil
}

// activeMemberIDs returns the user IDs of a study's ACTIVE members except skip.
func activeMemberIDs(ctx context.Context, members repository.MembershipRepository, studyID, skip uint64) ([]uint64, error) {
	active, err := members.ListByStudy(ctx, studyID, models.MemberStatusActive)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(active))
	for _, m := range active {
		if m.UserID != skip {
			ids = append(ids, m.UserID)
		}
	}
	return ids, nil
}
