package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/royalti/internal/clock"
	obsctx "github.com/smallbiznis/royalti/internal/observability/context"
	"github.com/smallbiznis/royalti/internal/period/domain"
	reportdomain "github.com/smallbiznis/royalti/internal/report/domain"
	"github.com/smallbiznis/royalti/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("period.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.Period, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return domain.Period{}, domain.ErrInvalidCode
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = code
	}
	reportType, err := reportdomain.ParseReportType(req.Type)
	if err != nil {
		return domain.Period{}, err
	}

	existing, err := s.repo.FindActiveByCode(ctx, s.db, code, reportType)
	if err != nil {
		return domain.Period{}, err
	}
	if existing != nil {
		return domain.Period{}, domain.ErrDuplicate
	}

	_, actorID := obsctx.ActorFromContext(ctx)
	now := s.clock.Now()
	period := domain.Period{
		ID:         s.genID.Generate(),
		Code:       code,
		Name:       name,
		ReportType: reportType,
		Active:     true,
		CreatedBy:  actorID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Insert(ctx, s.db, &period); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Period{}, domain.ErrDuplicate
		}
		return domain.Period{}, err
	}

	s.log.Info("period created",
		zap.String("period_id", period.ID.String()),
		zap.String("code", code),
		zap.String("report_type", reportType.String()),
	)
	return period, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Period, error) {
	periodID, err := parseID(id)
	if err != nil {
		return domain.Period{}, err
	}
	period, err := s.repo.FindByID(ctx, s.db, periodID)
	if err != nil {
		return domain.Period{}, err
	}
	if period == nil {
		return domain.Period{}, domain.ErrNotFound
	}
	return *period, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Period, error) {
	filter := domain.ListFilter{ActiveOnly: req.ActiveOnly}
	if strings.TrimSpace(req.Type) != "" {
		reportType, err := reportdomain.ParseReportType(req.Type)
		if err != nil {
			return nil, err
		}
		filter.Type = reportType
	}
	return s.repo.List(ctx, s.db, filter)
}

// Deactivate retires a period. A period still referenced by an active
// report job is read-only.
func (s *Service) Deactivate(ctx context.Context, id string) (domain.Period, error) {
	periodID, err := parseID(id)
	if err != nil {
		return domain.Period{}, err
	}

	var out domain.Period
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		period, err := s.repo.FindByID(ctx, tx, periodID)
		if err != nil {
			return err
		}
		if period == nil {
			return domain.ErrNotFound
		}
		if !period.Active {
			return domain.ErrInactive
		}
		jobs, err := s.repo.CountActiveJobs(ctx, tx, periodID)
		if err != nil {
			return err
		}
		if jobs > 0 {
			return domain.ErrInUse
		}
		if _, err := s.repo.Deactivate(ctx, tx, periodID); err != nil {
			return err
		}
		period.Active = false
		out = *period
		return nil
	})
	if err != nil {
		return domain.Period{}, err
	}
	return out, nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
