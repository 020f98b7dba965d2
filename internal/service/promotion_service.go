package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yourorg/tenantonboard/internal/domain"
	"github.com/yourorg/tenantonboard/internal/ledger"
	"github.com/yourorg/tenantonboard/internal/notify"
	"github.com/yourorg/tenantonboard/internal/observability/metrics"
	"github.com/yourorg/tenantonboard/internal/observability/tracing"
	"github.com/yourorg/tenantonboard/internal/security/audit"
	"github.com/yourorg/tenantonboard/internal/token"
)

// MessageDispatcher queues an outbound message without waiting for delivery.
type MessageDispatcher interface {
	Dispatch(msg domain.Message) bool
}

// TaskSubmitter accepts fire-and-forget background work.
type TaskSubmitter interface {
	Submit(name string, fn func(ctx context.Context) error) bool
}

// PromotionConfig holds the engine's tunables
type PromotionConfig struct {
	TokenTTL    time.Duration
	SSOMFAURL   string // base of activation links
	Sender      string // From header of activation mail
	AutoPromote bool   // advance new records in the background after create
	// LegacyVerificationGate accepts verification only at the terminal stage.
	LegacyVerificationGate bool
}

// Activation is the result of issuing an identity activation link
type Activation struct {
	Prospectus *domain.Prospectus
	Link       string
}

// PromotionService drives prospectuses through the onboarding stages
type PromotionService struct {
	repo       domain.ProspectusRepository
	codec      *token.Codec
	ledger     *ledger.Ledger
	dispatcher MessageDispatcher
	tasks      TaskSubmitter
	audit      *audit.Logger
	logger     *slog.Logger
	tracer     trace.Tracer
	cfg        PromotionConfig
}

// NewPromotionService creates a new promotion service
func NewPromotionService(
	repo domain.ProspectusRepository,
	codec *token.Codec,
	verificationLedger *ledger.Ledger,
	dispatcher MessageDispatcher,
	tasks TaskSubmitter,
	auditLog *audit.Logger,
	logger *slog.Logger,
	cfg PromotionConfig,
) *PromotionService {
	if logger == nil {
		logger = slog.Default()
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(logger)
	}
	return &PromotionService{
		repo:       repo,
		codec:      codec,
		ledger:     verificationLedger,
		dispatcher: dispatcher,
		tasks:      tasks,
		audit:      auditLog,
		logger:     logger,
		tracer:     tracing.Tracer(),
		cfg:        cfg,
	}
}

// Onboard creates a prospectus in the onboarding stage after checking that
// neither its slug nor its requester email is taken.
func (s *PromotionService) Onboard(ctx context.Context, in domain.NewProspectus) (*domain.Prospectus, error) {
	ctx, span := s.tracer.Start(ctx, "PromotionService.Onboard", trace.WithAttributes(attribute.String("slug", in.Slug)))
	defer span.End()

	logger := s.logger.With(slog.String("slug", in.Slug))
	logger.Info("onboarding new prospectus", slog.String("title", in.Title))

	if _, found, err := s.repo.FindByUniqueFields(ctx, in.Slug, ""); err != nil {
		return nil, s.failCreate(span, fmt.Errorf("check slug: %w", err))
	} else if found {
		logger.Warn("slug already in use")
		return nil, s.failCreate(span, domain.ErrDuplicateSlug)
	}

	if _, found, err := s.repo.FindByUniqueFields(ctx, "", in.RequesterEmail); err != nil {
		return nil, s.failCreate(span, fmt.Errorf("check email: %w", err))
	} else if found {
		logger.Warn("requester email already in use")
		return nil, s.failCreate(span, domain.ErrDuplicateEmail)
	}

	p, err := s.repo.Create(ctx, in)
	if err != nil {
		return nil, s.failCreate(span, err)
	}
	metrics.ObserveCreate("success")
	s.audit.LogCreated(ctx, p.ID, p.Slug)
	span.SetAttributes(attribute.String("prospectus_id", p.ID))

	if s.cfg.AutoPromote {
		id := p.ID
		if !s.tasks.Submit("prospectus.auto_promote", func(ctx context.Context) error {
			_, err := s.Advance(ctx, id)
			return err
		}) {
			logger.Warn("auto-promotion not scheduled", slog.String("prospectus_id", id))
		}
	}

	logger.Info("prospectus onboarded", slog.String("prospectus_id", p.ID))
	return p, nil
}

// List returns one page of prospectuses. page is 1-indexed.
func (s *PromotionService) List(ctx context.Context, page, limit int) ([]*domain.Prospectus, error) {
	if page < 1 || limit < 1 {
		return nil, fmt.Errorf("invalid paging: page=%d limit=%d", page, limit)
	}
	out, err := s.repo.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*domain.Prospectus{}
	}
	return out, nil
}

// Get returns the prospectus and whether it exists.
func (s *PromotionService) Get(ctx context.Context, id string) (*domain.Prospectus, bool, error) {
	return s.repo.GetByID(ctx, id)
}

// Advance moves a prospectus to its next stage. Entering the admin email
// activation stage issues the activation link in the same call. Leaving admin
// email verification is reserved for VerifyActivation.
func (s *PromotionService) Advance(ctx context.Context, id string) (*domain.Prospectus, error) {
	ctx, span := s.tracer.Start(ctx, "PromotionService.Advance", trace.WithAttributes(attribute.String("prospectus_id", id)))
	defer span.End()

	p, found, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if !found {
		return nil, s.fail(span, domain.ErrNotFound)
	}

	next, ok := domain.NextStage(p.Stage)
	if !ok {
		if !p.Stage.Valid() {
			s.logger.Error("prospectus holds an unknown stage",
				slog.String("prospectus_id", id),
				slog.String("stage", string(p.Stage)),
			)
			metrics.ObserveTransition("none", "invalid")
		} else {
			s.logger.Warn("cannot promote prospectus past terminal stage",
				slog.String("prospectus_id", id),
				slog.String("stage", string(p.Stage)),
			)
			metrics.ObserveTransition("none", "terminal")
		}
		return nil, s.fail(span, domain.ErrTerminalOrInvalidStage)
	}

	// Leaving admin email verification requires a verified token unless the
	// legacy gate expects the promotion to happen first.
	if p.Stage == domain.StageAdminEmailVerification && !s.cfg.LegacyVerificationGate {
		s.logger.Warn("promotion out of email verification requires identity verification",
			slog.String("prospectus_id", id),
		)
		return nil, s.fail(span, domain.ErrWrongStage)
	}

	updated, err := s.transition(ctx, p, next)
	if err != nil {
		return nil, s.fail(span, err)
	}

	if updated.Stage == domain.StageAdminEmailActivation {
		if _, err := s.issue(ctx, updated); err != nil {
			return nil, s.fail(span, err)
		}
	}
	return updated, nil
}

// IssueActivation mints a fresh activation token for a prospectus waiting on
// admin email activation, records it as the only valid one and mails the link.
func (s *PromotionService) IssueActivation(ctx context.Context, id string) (*Activation, error) {
	ctx, span := s.tracer.Start(ctx, "PromotionService.IssueActivation", trace.WithAttributes(attribute.String("prospectus_id", id)))
	defer span.End()

	p, found, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if !found {
		return nil, s.fail(span, domain.ErrNotFound)
	}
	if p.Stage != domain.StageAdminEmailActivation {
		s.logger.Warn("activation requested in wrong stage",
			slog.String("prospectus_id", id),
			slog.String("stage", string(p.Stage)),
		)
		return nil, s.fail(span, domain.ErrWrongStage)
	}

	act, err := s.issue(ctx, p)
	if err != nil {
		return nil, s.fail(span, err)
	}
	return act, nil
}

// VerifyActivation checks a presented token against the ledger and the codec
// and, on success, consumes it and completes the email verification stage.
func (s *PromotionService) VerifyActivation(ctx context.Context, id, presented string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "PromotionService.VerifyActivation", trace.WithAttributes(attribute.String("prospectus_id", id)))
	defer span.End()

	p, found, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", s.failVerify(ctx, span, id, err)
	}
	if !found {
		return "", s.failVerify(ctx, span, id, domain.ErrNotFound)
	}

	gate := domain.StageAdminEmailVerification
	if s.cfg.LegacyVerificationGate {
		gate = domain.StageInfrastructure
	}
	if p.Stage != gate {
		return "", s.failVerify(ctx, span, id, domain.ErrWrongStage)
	}

	match, err := s.ledger.Matches(ctx, id, presented)
	if err != nil {
		return "", s.failVerify(ctx, span, id, err)
	}
	if !match {
		return "", s.failVerify(ctx, span, id, domain.ErrExpiredOrMissingLink)
	}

	claims, err := s.codec.Validate(presented)
	if err != nil {
		return "", s.failVerify(ctx, span, id, domain.WrapError(domain.CodeInvalidToken, domain.ErrInvalidToken.Message, err))
	}

	if next, ok := domain.NextStage(p.Stage); ok {
		if _, err := s.transition(ctx, p, next); err != nil {
			return "", s.failVerify(ctx, span, id, err)
		}
		// The stage gate now rejects replays, so a failed delete is not fatal.
		if err := s.ledger.Invalidate(ctx, id); err != nil {
			s.logger.Error("failed to invalidate verified token", slog.String("prospectus_id", id), slog.String("error", err.Error()))
		}
	} else if err := s.ledger.Invalidate(ctx, id); err != nil {
		return "", s.failVerify(ctx, span, id, err)
	}

	metrics.ObserveVerification("success")
	s.audit.LogVerification(ctx, id, audit.StatusSuccess, "")
	s.logger.Info("identity verified", slog.String("prospectus_id", id))
	return fmt.Sprintf("Email %s verified successfully!", claims.Email), nil
}

// transition persists from -> to with a conditional write.
func (s *PromotionService) transition(ctx context.Context, p *domain.Prospectus, to domain.Stage) (*domain.Prospectus, error) {
	updated, ok, err := s.repo.UpdateStage(ctx, p.ID, p.Stage, to)
	if err != nil {
		metrics.ObserveTransition(string(to), "error")
		s.audit.LogTransition(ctx, p.ID, string(p.Stage), string(to), audit.StatusFailure)
		return nil, err
	}
	if !ok {
		metrics.ObserveTransition(string(to), "conflict")
		s.audit.LogTransition(ctx, p.ID, string(p.Stage), string(to), audit.StatusFailure)
		return nil, domain.ErrConcurrentTransition
	}

	metrics.ObserveTransition(string(to), "success")
	s.audit.LogTransition(ctx, p.ID, string(p.Stage), string(to), audit.StatusSuccess)
	s.logger.Info("prospectus promoted",
		slog.String("prospectus_id", p.ID),
		slog.String("from", string(p.Stage)),
		slog.String("to", string(to)),
	)
	return updated, nil
}

func (s *PromotionService) issue(ctx context.Context, p *domain.Prospectus) (*Activation, error) {
	tok, err := s.codec.Issue(p.ID, p.RequesterEmail, p.Slug, s.cfg.TokenTTL)
	if err != nil {
		metrics.ObserveActivation("error")
		return nil, fmt.Errorf("issue activation token: %w", err)
	}
	if err := s.ledger.Put(ctx, p.ID, tok, s.cfg.TokenTTL); err != nil {
		metrics.ObserveActivation("error")
		return nil, err
	}

	link := ActivationLink(s.cfg.SSOMFAURL, p.ID, tok)
	msg, err := notify.ActivationMessage(s.cfg.Sender, p.RequesterName(), p.RequesterEmail, link, s.cfg.TokenTTL)
	if err != nil {
		s.logger.Error("failed to render activation email", slog.String("prospectus_id", p.ID), slog.String("error", err.Error()))
	} else if !s.dispatcher.Dispatch(msg) {
		s.logger.Warn("activation email not queued", slog.String("prospectus_id", p.ID))
	}

	metrics.ObserveActivation("success")
	s.audit.LogActivationIssued(ctx, p.ID)
	s.logger.Info("identity activation link generated", slog.String("prospectus_id", p.ID))
	return &Activation{Prospectus: p, Link: link}, nil
}

// ActivationLink builds the URL mailed to the requester.
func ActivationLink(base, id, tok string) string {
	return base + "/auth/identity-verification/" + url.PathEscape(tok) +
		"?utm_source=tp.iv&utm_scope=email&utm_id=" + url.QueryEscape(id)
}

func (s *PromotionService) failCreate(span trace.Span, err error) error {
	result := "error"
	if domain.IsDuplicate(err) {
		result = "duplicate"
	}
	metrics.ObserveCreate(result)
	return s.fail(span, err)
}

func (s *PromotionService) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(domain.CodeOf(err)))
	return err
}

func (s *PromotionService) failVerify(ctx context.Context, span trace.Span, id string, err error) error {
	reason := string(domain.CodeOf(err))
	metrics.ObserveVerification(reason)
	s.audit.LogVerification(ctx, id, audit.StatusFailure, reason)
	if !errors.Is(err, domain.ErrExpiredOrMissingLink) && !errors.Is(err, domain.ErrInvalidToken) {
		s.logger.Warn("identity verification failed", slog.String("prospectus_id", id), slog.String("error", err.Error()))
	}
	return s.fail(span, err)
}
