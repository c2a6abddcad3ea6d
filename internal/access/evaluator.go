// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

package access

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/lfa-academy/lfa-server/internal/auth"
)

var tracer = otel.Tracer("lfa/access")

// Evaluator runs relationship-based resource checks.
type Evaluator struct {
	relationships RelationshipStore
	logger        *slog.Logger
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithEvaluatorLogger sets the logger used for denied checks.
func WithEvaluatorLogger(logger *slog.Logger) EvaluatorOption {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// NewEvaluator creates an Evaluator backed by relationships.
func NewEvaluator(relationships RelationshipStore, opts ...EvaluatorOption) (*Evaluator, error) {
	if relationships == nil {
		return nil, oops.Code("ACCESS_CONFIG_INVALID").Errorf("relationship store is required")
	}
	e := &Evaluator{relationships: relationships, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// CanAccess decides whether identity may reach the resource kind/id. Admins
// are always allowed. Storage failures are returned as errors and never turn
// into a denial.
func (e *Evaluator) CanAccess(ctx context.Context, identity *auth.Identity, kind ResourceKind, id string) (decision Decision, err error) {
	ctx, span := tracer.Start(ctx, "access.check")
	start := time.Now()
	defer func() {
		RecordDecision(kind, decision, err, time.Since(start))
		span.SetAttributes(
			attribute.String("access.resource", describe(kind, id)),
			attribute.Bool("access.allowed", decision.Allowed),
			attribute.String("access.reason", decision.Reason),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if identity == nil {
		return Decision{}, auth.ErrTokenMissing()
	}
	if identity.Role == auth.RoleAdmin {
		return allow(ReasonAdmin), nil
	}

	switch kind {
	case ResourcePlayer:
		decision, err = e.checkPlayer(ctx, identity, id)
	case ResourceTeam:
		decision, err = e.checkTeam(ctx, identity, id)
	case ResourceMessage:
		decision, err = e.checkMessage(ctx, identity, id)
	default:
		return Decision{}, oops.Code("RESOURCE_KIND_INVALID").With("kind", string(kind)).Errorf("unknown resource type %q", kind)
	}
	if err != nil {
		return Decision{}, oops.With("resource", string(kind)).With("resource_id", id).Wrap(err)
	}
	if !decision.Allowed {
		e.logger.DebugContext(ctx, "access denied",
			"identity", identity.ID,
			"role", identity.Role.String(),
			"resource", describe(kind, id),
			"reason", decision.Reason)
	}
	return decision, nil
}

// Authorize is CanAccess returning a forbidden error on denial.
func (e *Evaluator) Authorize(ctx context.Context, identity *auth.Identity, kind ResourceKind, id string) error {
	decision, err := e.CanAccess(ctx, identity, kind, id)
	if err != nil {
		return err
	}
	return decision.Err(kind, id)
}

func (e *Evaluator) checkPlayer(ctx context.Context, identity *auth.Identity, playerID string) (Decision, error) {
	switch identity.Role {
	case auth.RolePlayer:
		own, err := e.relationships.PlayerByUser(ctx, identity.ID)
		if errors.Is(err, ErrNotFound) {
			return deny(ReasonNoRelationship), nil
		}
		if err != nil {
			return Decision{}, err
		}
		if own.ID == playerID {
			return allow(ReasonSelf), nil
		}

	case auth.RoleCoach:
		coachTeam, err := e.coachTeam(ctx, identity.ID)
		if err != nil {
			return Decision{}, err
		}
		if coachTeam == "" {
			return deny(ReasonNoRelationship), nil
		}
		player, err := e.relationships.PlayerByID(ctx, playerID)
		if errors.Is(err, ErrNotFound) {
			return deny(ReasonNotFound), nil
		}
		if err != nil {
			return Decision{}, err
		}
		if player.TeamID == coachTeam {
			return allow(ReasonCoachTeam), nil
		}

	case auth.RoleParent:
		linked, err := e.relationships.IsGuardian(ctx, identity.ID, playerID)
		if err != nil {
			return Decision{}, err
		}
		if linked {
			return allow(ReasonGuardian), nil
		}
	}
	return deny(ReasonNoRelationship), nil
}

func (e *Evaluator) checkTeam(ctx context.Context, identity *auth.Identity, teamID string) (Decision, error) {
	switch identity.Role {
	case auth.RoleCoach:
		coachTeam, err := e.coachTeam(ctx, identity.ID)
		if err != nil {
			return Decision{}, err
		}
		if coachTeam != "" && coachTeam == teamID {
			return allow(ReasonCoachTeam), nil
		}

	case auth.RolePlayer:
		own, err := e.relationships.PlayerByUser(ctx, identity.ID)
		if errors.Is(err, ErrNotFound) {
			return deny(ReasonNoRelationship), nil
		}
		if err != nil {
			return Decision{}, err
		}
		if own.TeamID != "" && own.TeamID == teamID {
			return allow(ReasonTeamMember), nil
		}

	case auth.RoleParent:
		linked, err := e.relationships.GuardsTeamMember(ctx, identity.ID, teamID)
		if err != nil {
			return Decision{}, err
		}
		if linked {
			return allow(ReasonGuardianTeam), nil
		}
	}
	return deny(ReasonNoRelationship), nil
}

func (e *Evaluator) checkMessage(ctx context.Context, identity *auth.Identity, messageID string) (Decision, error) {
	p, err := e.relationships.Participants(ctx, messageID)
	if errors.Is(err, ErrNotFound) {
		return deny(ReasonNotFound), nil
	}
	if err != nil {
		return Decision{}, err
	}
	if identity.ID == p.SenderID || identity.ID == p.RecipientID {
		return allow(ReasonParticipant), nil
	}
	return deny(ReasonNoRelationship), nil
}

// coachTeam returns "" when the coach has no profile.
func (e *Evaluator) coachTeam(ctx context.Context, userID string) (string, error) {
	team, err := e.relationships.CoachTeam(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return team, err
}
