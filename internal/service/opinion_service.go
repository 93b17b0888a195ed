package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/pricing"
)

// OpinionReader reads opinion snapshots from chain.
type OpinionReader interface {
	GetOpinionDetails(ctx context.Context, id uint64) (domain.Opinion, error)
}

// OpinionService serves price quotes for opinions. Reads go through a short
// cache because every page view would otherwise hit the RPC endpoint.
type OpinionService struct {
	chain  OpinionReader
	cache  domain.OpinionCache
	fees   pricing.FeeSchedule
	logger *slog.Logger
}

// NewOpinionService creates an OpinionService. cache may be nil.
func NewOpinionService(chain OpinionReader, cache domain.OpinionCache, fees pricing.FeeSchedule, logger *slog.Logger) *OpinionService {
	return &OpinionService{
		chain:  chain,
		cache:  cache,
		fees:   fees,
		logger: logger,
	}
}

// Opinion returns the snapshot for id, from cache when fresh.
func (s *OpinionService) Opinion(ctx context.Context, id uint64) (domain.Opinion, error) {
	if s.cache != nil {
		op, err := s.cache.Get(ctx, id)
		if err == nil {
			return op, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "opinion_service: cache read failed",
				slog.Uint64("opinion_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	op, err := s.chain.GetOpinionDetails(ctx, id)
	if err != nil {
		return domain.Opinion{}, fmt.Errorf("opinion_service: get %d: %w", id, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, op); err != nil {
			s.logger.WarnContext(ctx, "opinion_service: cache write failed",
				slog.Uint64("opinion_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return op, nil
}

// Quote returns the price view for id.
func (s *OpinionService) Quote(ctx context.Context, id uint64) (pricing.Quote, error) {
	op, err := s.Opinion(ctx, id)
	if err != nil {
		return pricing.Quote{}, err
	}
	return pricing.NewQuote(op, s.fees), nil
}

// Invalidate drops the cached snapshot after a confirmed answer change.
func (s *OpinionService) Invalidate(ctx context.Context, id uint64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "opinion_service: cache invalidate failed",
			slog.Uint64("opinion_id", id),
			slog.String("error", err.Error()),
		)
	}
}
