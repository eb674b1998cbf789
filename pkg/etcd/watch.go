package etcd

import (
	"context"
	"maps"
	"time"

	"github.com/sirupsen/logrus"
	"go.etcd.io/etcd/api/v3/mvccpb"
	v3 "go.etcd.io/etcd/client/v3"

	"github.com/ovmcloud/ocfs2-manager/pkg/retry"
	"github.com/ovmcloud/ocfs2-manager/pkg/retry/backoff"
)

// Snapshot is the decoded set of keys under a prefix as of Revision
type Snapshot[K comparable, V any] struct {
	Revision int64
	Tree     map[K]V
}

// KVTransform decodes a raw key-value pair under the watched prefix. Pairs
// that fail to decode are logged and left out of the snapshot.
type KVTransform[K comparable, V any] func(k, v []byte) (K, V, error)

// WatchPrefix emits a Snapshot of the prefix on start and after every batch of
// changes. Watch failures restart from a fresh read with backoff. The returned
// channel is closed once ctx is cancelled.
func WatchPrefix[K comparable, V any](
	ctx context.Context,
	client *v3.Client,
	prefix string,
	transform KVTransform[K, V],
) <-chan Snapshot[K, V] {
	w := &prefixWatcher[K, V]{
		log: logrus.StandardLogger().WithFields(logrus.Fields{
			"method": "WatchPrefix",
			"prefix": prefix,
		}),
		client:    client,
		prefix:    prefix,
		transform: transform,
		ch:        make(chan Snapshot[K, V], 1),
	}

	go func() {
		defer close(w.ch)

		_, _ = retry.Retry(
			func() error {
				return w.run(ctx)
			},
			func(_ uint, err error) bool {
				w.log.WithError(err).Warn("failure during watch loop")
				return true
			},
			retry.NonRetriableErrors(context.Canceled),
			retry.BackoffWithJitter(backoff.Constant(time.Second), 2*time.Second, 0.1),
		)
		w.log.Debug("watch closed")
	}()

	return w.ch
}

type prefixWatcher[K comparable, V any] struct {
	log       *logrus.Entry
	client    *v3.Client
	prefix    string
	transform KVTransform[K, V]
	ch        chan Snapshot[K, V]
}

func (w *prefixWatcher[K, V]) run(ctx context.Context) error {
	get, err := w.client.Get(ctx, w.prefix, v3.WithPrefix())
	if err != nil {
		return err
	}
	if get.More {
		w.log.WithFields(logrus.Fields{
			"total":    get.Count,
			"returned": len(get.Kvs),
		}).Warn("prefix read was truncated")
	}

	revision := get.Header.Revision
	tree := make(map[K]V, len(get.Kvs))
	for _, kv := range get.Kvs {
		w.put(tree, kv)
	}
	if err := w.emit(ctx, revision, tree); err != nil {
		return err
	}

	// PrevKV is required to decode the key of deleted pairs
	watchCh := w.client.Watch(ctx, w.prefix, v3.WithPrefix(), v3.WithRev(revision+1), v3.WithPrevKV())
	for resp := range watchCh {
		if err := resp.Err(); err != nil {
			return err
		}

		for _, event := range resp.Events {
			switch event.Type {
			case v3.EventTypePut:
				w.put(tree, event.Kv)
			case v3.EventTypeDelete:
				w.delete(tree, event.PrevKv)
			}
		}

		if err := w.emit(ctx, resp.Header.Revision, tree); err != nil {
			return err
		}
	}

	return ctx.Err()
}

func (w *prefixWatcher[K, V]) put(tree map[K]V, kv *mvccpb.KeyValue) {
	key, val, err := w.transform(kv.Key, kv.Value)
	if err != nil {
		w.log.WithError(err).WithField("key", string(kv.Key)).Warn("invalid record, dropping")
		return
	}
	tree[key] = val
}

func (w *prefixWatcher[K, V]) delete(tree map[K]V, prev *mvccpb.KeyValue) {
	if prev == nil {
		return
	}

	key, _, err := w.transform(prev.Key, prev.Value)
	if err != nil {
		// Never made it into the tree
		return
	}
	delete(tree, key)
}

func (w *prefixWatcher[K, V]) emit(ctx context.Context, revision int64, tree map[K]V) error {
	select {
	case w.ch <- Snapshot[K, V]{Revision: revision, Tree: maps.Clone(tree)}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
