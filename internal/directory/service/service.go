package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/royalti/internal/cache"
	"github.com/smallbiznis/royalti/internal/clock"
	"github.com/smallbiznis/royalti/internal/directory/domain"
	obsctx "github.com/smallbiznis/royalti/internal/observability/context"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const lookupChunk = 500

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  domain.Repository
	Cache cache.OwnerCache `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  domain.Repository
	cache cache.OwnerCache
}

func New(p Params) domain.Service {
	c := p.Cache
	if c == nil {
		c = cache.NewOwnerCache()
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("directory.service"),
		clock: p.Clock,
		repo:  p.Repo,
		cache: c,
	}
}

func (s *Service) Resolve(ctx context.Context, tx *gorm.DB, accountIDs []string) (map[string]string, error) {
	// Owners read inside a caller's transaction may come from a snapshot
	// older than a concurrent SetOwner, so only reads on our own connection
	// fill the cache.
	conn, fill := tx, false
	if conn == nil {
		conn, fill = s.db, true
	}
	generation := s.cache.Generation()

	owners := make(map[string]string, len(accountIDs))
	var misses []string
	for _, accountID := range accountIDs {
		if _, seen := owners[accountID]; seen {
			continue
		}
		if userID, ok := s.cache.GetOwner(accountID); ok {
			owners[accountID] = userID
			continue
		}
		owners[accountID] = accountID
		misses = append(misses, accountID)
	}

	for start := 0; start < len(misses); start += lookupChunk {
		end := min(start+lookupChunk, len(misses))
		found, err := s.repo.FindMany(ctx, conn, misses[start:end])
		if err != nil {
			return nil, err
		}
		for _, owner := range found {
			owners[owner.AccountID] = owner.UserID
		}
	}
	if fill {
		for _, accountID := range misses {
			s.cache.FillOwner(accountID, owners[accountID], generation)
		}
	}
	return owners, nil
}

func (s *Service) SetOwner(ctx context.Context, accountID, userID string) (domain.AccountOwner, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return domain.AccountOwner{}, domain.ErrInvalidAccount
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.AccountOwner{}, domain.ErrInvalidUser
	}

	_, actorID := obsctx.ActorFromContext(ctx)
	now := s.clock.Now()
	owner := domain.AccountOwner{
		AccountID: accountID,
		UserID:    userID,
		UpdatedBy: actorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Upsert(ctx, s.db, &owner); err != nil {
		return domain.AccountOwner{}, err
	}
	s.cache.Invalidate(accountID)

	s.log.Info("account owner updated",
		zap.String("account_id", accountID),
		zap.String("user_id", userID),
		zap.String("actor_id", actorID),
	)
	return owner, nil
}
