package jobs

import (
	"context"
	"log"
	"time"

	"kompello/internal/caching"
	"kompello/internal/repositories"
)

// StatsRefresher recomputes per-tenant member counts into the cache so list
// and detail handlers can serve them without a COUNT per request.
type StatsRefresher struct {
	membershipRepo repositories.MembershipRepository
	cacheSvc       caching.CacheService
	cacheTTL       time.Duration
}

func NewStatsRefresher(membershipRepo repositories.MembershipRepository, cacheSvc caching.CacheService, cacheTTL time.Duration) *StatsRefresher {
	return &StatsRefresher{
		membershipRepo: membershipRepo,
		cacheSvc:       cacheSvc,
		cacheTTL:       cacheTTL,
	}
}

// Refresh loads all member counts and writes them to the cache.
func (s *StatsRefresher) Refresh(ctx context.Context) error {
	counts, err := s.membershipRepo.MemberCounts(ctx)
	if err != nil {
		return err
	}

	for tenantID, count := range counts {
		if err := s.cacheSvc.SetTenantMemberCount(ctx, tenantID, count, s.cacheTTL); err != nil {
			log.Printf("Failed to cache member count for tenant %s: %v", tenantID, err)
		}
	}

	return nil
}
