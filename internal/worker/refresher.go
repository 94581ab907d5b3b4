package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"github.com/dreiseu/ai-weather-insights-agent/internal/usecase"
)

const refreshTimeout = 2 * time.Minute

// Refresher re-runs the pipeline for a fixed set of watch locations on a
// cron schedule so their cache entries never go stale. Failures are
// logged and retried on the next tick.
type Refresher struct {
	orchestrator usecase.InsightOrchestrator
	locations    []string
	spec         string
	schedule     cron.Schedule
	clock        clockwork.Clock
	started      bool
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewRefresher parses the cron spec (standard five-field syntax or
// descriptors like "@every 30m"). A nil clock means wall time.
func NewRefresher(
	orchestrator usecase.InsightOrchestrator,
	locations []string,
	spec string,
	clock clockwork.Clock,
) (*Refresher, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Refresher{
		orchestrator: orchestrator,
		locations:    locations,
		spec:         spec,
		schedule:     schedule,
		clock:        clock,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}, nil
}

// Start launches the refresh loop. With no watch locations configured
// the refresher stays off.
func (r *Refresher) Start() {
	if len(r.locations) == 0 {
		slog.Info("insight refresher disabled, no watch locations configured")
		return
	}
	r.started = true
	slog.Info("starting insight refresher",
		slog.Int("locations", len(r.locations)),
		slog.String("schedule", r.spec))
	go r.run()
}

// Stop halts the loop and waits for an in-flight refresh to finish.
func (r *Refresher) Stop() {
	if !r.started {
		return
	}
	slog.Info("stopping insight refresher")
	close(r.stopChan)
	<-r.doneChan
}

func (r *Refresher) run() {
	defer close(r.doneChan)
	for {
		next := r.schedule.Next(r.clock.Now())
		select {
		case <-r.stopChan:
			return
		case <-r.clock.After(next.Sub(r.clock.Now())):
			r.refreshAll()
		}
	}
}

// refreshAll recomputes every watch location for the general audience.
// BypassCache forces a fresh pipeline run; the result still lands in
// the cache for subsequent requests.
func (r *Refresher) refreshAll() {
	for _, location := range r.locations {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		bundle, err := r.orchestrator.Execute(ctx, usecase.InsightRequest{
			Location:    location,
			Audience:    usecase.AudienceGeneral,
			BypassCache: true,
		})
		cancel()

		if err != nil {
			slog.Warn("insight refresh failed, will retry next tick",
				slog.String("location", location),
				slog.String("error", err.Error()))
			continue
		}
		slog.Info("insight cache refreshed",
			slog.String("location", location),
			slog.Bool("degraded", bundle.Degraded))
	}
}
