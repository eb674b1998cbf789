package async_resync

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/async"
	ocfs2_data "github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/manager"
)

type service struct {
	log     *logrus.Entry
	conf    *conf
	data    ocfs2_data.Provider
	manager manager.Manager
}

// New returns a service that periodically re-prepares the nodes of every
// known cluster, so hosts that were skipped while unreachable eventually
// converge.
func New(data ocfs2_data.Provider, manager manager.Manager, configProvider ConfigProvider) async.Service {
	return &service{
		log:     logrus.StandardLogger().WithField("service", "resync"),
		conf:    configProvider(),
		data:    data,
		manager: manager,
	}
}

// Start runs sweeps on the configured cron schedule until ctx is cancelled.
// The interval bounds the duration of a single sweep, and is ignored when
// zero.
func (p *service) Start(ctx context.Context, interval time.Duration) error {
	schedule := p.conf.schedule.Get(ctx)
	if len(schedule) == 0 {
		p.log.Info("no resync schedule configured, periodic resync is disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	cronJob := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	_, err := cronJob.AddFunc(schedule, func() {
		sweepCtx := ctx
		if interval > 0 {
			var cancel context.CancelFunc
			sweepCtx, cancel = context.WithTimeout(ctx, interval)
			defer cancel()
		}

		_, err := p.sweep(sweepCtx)
		if err != nil && err != context.Canceled {
			p.log.WithError(err).Warn("resync sweep failed")
		}
	})
	if err != nil {
		return errors.Wrapf(err, "invalid resync schedule %q", schedule)
	}

	p.log.WithField("schedule", schedule).Info("starting periodic resync")
	cronJob.Start()

	<-ctx.Done()
	<-cronJob.Stop().Done()
	return ctx.Err()
}
