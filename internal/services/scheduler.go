package services

import (
	"context"

	"auction-platform/internal/domain"
	"auction-platform/pkg/logger"

	"github.com/robfig/cron/v3"
)

// CronAuctionScheduler runs the expiration sweep on a cron spec. Only the
// instance holding leadership sweeps.
type CronAuctionScheduler struct {
	cron       *cron.Cron
	spec       string
	sweeper    *Sweeper
	leader     domain.LeaderElection
	instanceID string
	log        logger.Logger
}

func NewCronAuctionScheduler(spec string, sweeper *Sweeper, leader domain.LeaderElection,
	instanceID string, log logger.Logger) *CronAuctionScheduler {
	return &CronAuctionScheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		spec:       spec,
		sweeper:    sweeper,
		leader:     leader,
		instanceID: instanceID,
		log:        log,
	}
}

func (s *CronAuctionScheduler) Start(ctx context.Context) error {
	s.log.Info("Starting auction scheduler", "spec", s.spec)

	_, err := s.cron.AddFunc(s.spec, func() {
		s.RunOnce(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to return.
func (s *CronAuctionScheduler) Stop() error {
	s.log.Info("Stopping auction scheduler")
	<-s.cron.Stop().Done()
	return nil
}

// RunOnce performs one sweep if this instance is the leader. Failures are
// logged, never propagated, so the schedule keeps ticking.
func (s *CronAuctionScheduler) RunOnce(ctx context.Context) {
	isLeader, err := s.leader.IsLeader(ctx, s.instanceID)
	if err != nil {
		s.log.Error("Failed to check leadership", "instance_id", s.instanceID, "error", err)
		return
	}
	if !isLeader {
		s.log.Debug("Not the leader, skipping sweep", "instance_id", s.instanceID)
		return
	}

	if _, err := s.sweeper.CloseExpiredAuctions(ctx); err != nil {
		s.log.Error("Expired auctions sweep failed", "error", err)
	}
}
