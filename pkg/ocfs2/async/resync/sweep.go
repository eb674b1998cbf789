package async_resync

import (
	"context"
	"sync"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ovmcloud/ocfs2-manager/pkg/metrics"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/cluster"
)

const (
	sweepEventName          = "OCFS2Resync"
	sweepDurationMetricName = "OCFS2Resync/duration"
)

type sweepResult struct {
	clusters  int
	succeeded int
	failed    []uint64
}

func (p *service) sweep(ctx context.Context) (*sweepResult, error) {
	log := p.log.WithField("method", "sweep")

	start := time.Now()
	defer func() {
		metrics.RecordDuration(ctx, sweepDurationMetricName, time.Since(start))
	}()

	clusters, err := p.data.GetAllClusters(ctx)
	if err == cluster.ErrNotFound {
		return &sweepResult{}, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "error getting clusters")
	}

	concurrency := int(p.conf.clusterConcurrency.Get(ctx))
	if concurrency <= 0 {
		concurrency = 1
	}

	var mu sync.Mutex
	res := &sweepResult{
		clusters: len(clusters),
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	for _, record := range clusters {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return res, err
		}

		select {
		case <-ctx.Done():
			wg.Wait()
			return res, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(record *cluster.Record) {
			defer wg.Done()
			defer func() { <-sem }()

			success := p.resyncCluster(ctx, record)

			mu.Lock()
			if success {
				res.succeeded++
			} else {
				res.failed = append(res.failed, record.Id)
			}
			mu.Unlock()
		}(record)
	}
	wg.Wait()

	metrics.RecordEvent(ctx, sweepEventName, map[string]interface{}{
		"clusters":  res.clusters,
		"succeeded": res.succeeded,
		"failed":    len(res.failed),
	})

	log.WithFields(logrus.Fields{
		"clusters":  res.clusters,
		"succeeded": res.succeeded,
		"failed":    len(res.failed),
	}).Info("resync sweep completed")

	return res, nil
}

func (p *service) resyncCluster(ctx context.Context, record *cluster.Record) bool {
	if nr, ok := ctx.Value(metrics.NewRelicContextKey{}).(*newrelic.Application); ok {
		m := nr.StartTransaction("async__resync_service__prepare_cluster")
		defer m.End()
		ctx = newrelic.NewContext(ctx, m)
	}

	log := p.log.WithFields(logrus.Fields{
		"method":  "resyncCluster",
		"cluster": record.Id,
		"pod":     record.PodId,
		"zone":    record.DataCenterId,
	})

	verdict, err := p.manager.PrepareNodesForCluster(ctx, record.Id)
	if err != nil {
		log.WithError(err).Warn("failure resyncing cluster")
		return false
	}

	if !verdict.Success {
		log.WithFields(logrus.Fields{
			"failed_host": verdict.FailedHostId,
			"details":     verdict.Details,
		}).Warn("cluster nodes were not prepared")
		return false
	}

	return true
}
