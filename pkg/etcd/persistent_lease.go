package etcd

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	v3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"

	"github.com/ovmcloud/ocfs2-manager/pkg/retry"
	"github.com/ovmcloud/ocfs2-manager/pkg/retry/backoff"
)

const (
	minLeaseTtl = time.Second
	maxLeaseTtl = time.Minute
)

var (
	errSessionExpired = errors.New("lease session expired")
	errWatchClosed    = errors.New("key watch closed")
)

// PersistentLease keeps a key attached to a lease for as long as it is open.
//
// If the owning process dies or loses etcd for longer than the ttl, the key
// expires with the lease. Until Close is called, a lost lease or an externally
// deleted key is recreated in the background. This makes it suitable for
// presence registrations, such as a host announcing that its agent is alive.
type PersistentLease struct {
	log    *logrus.Entry
	client *v3.Client
	ttl    int

	key   string
	val   string
	valCh chan string

	// Signalled by the existence watcher when the key disappears
	deletedCh chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPersistentLease writes key=val under a new lease and keeps it there in
// the background. The ttl is truncated to whole seconds and must be within
// [1s, 1m].
func NewPersistentLease(client *v3.Client, key, val string, ttl time.Duration) (*PersistentLease, error) {
	ttl = ttl.Truncate(time.Second)
	if ttl < minLeaseTtl || ttl > maxLeaseTtl {
		return nil, errors.Errorf("invalid lease ttl %v", ttl)
	}

	ctx, cancel := context.WithCancel(context.Background())
	pl := &PersistentLease{
		log: logrus.StandardLogger().WithFields(logrus.Fields{
			"type": "etcd/PersistentLease",
			"key":  key,
		}),
		client: client,
		ttl:    int(ttl / time.Second),

		key:       key,
		val:       val,
		valCh:     make(chan string),
		deletedCh: make(chan struct{}, 1),

		ctx:    ctx,
		cancel: cancel,
	}

	pl.wg.Add(2)
	go pl.forever("keepalive", pl.keepalive)
	go pl.forever("watch", pl.watchDeletes)

	return pl, nil
}

// Key returns the leased key
func (pl *PersistentLease) Key() string {
	return pl.key
}

// SetValue replaces the leased value. The write happens asynchronously, so
// readers may observe the old value for a short time. It has no effect after
// Close.
func (pl *PersistentLease) SetValue(val string) {
	select {
	case pl.valCh <- val:
	case <-pl.ctx.Done():
	}
}

// Close stops maintaining the key and revokes its lease. It is safe to call
// multiple times.
func (pl *PersistentLease) Close() {
	pl.cancel()
	pl.wg.Wait()
}

func (pl *PersistentLease) forever(name string, fn func() error) {
	defer pl.wg.Done()

	_, _ = retry.Retry(
		fn,
		func(_ uint, err error) bool {
			if pl.ctx.Err() != nil {
				return false
			}

			pl.log.WithError(err).WithField("loop", name).Warn("failure maintaining lease")
			return true
		},
		retry.BackoffWithJitter(backoff.Constant(time.Second), time.Second, 0.1),
	)
}

// keepalive holds a session open and rewrites the key whenever the value
// changes or the key is deleted. Returning an error starts a new session.
func (pl *PersistentLease) keepalive() error {
	// The session keeps the client context so Close can still revoke it
	session, err := concurrency.NewSession(pl.client, concurrency.WithTTL(pl.ttl))
	if err != nil {
		return err
	}
	defer func() {
		// Revokes the lease, removing the key right away
		if err := session.Close(); err != nil {
			pl.log.WithError(err).Debug("failure closing lease session")
		}
	}()

	for {
		putCtx, cancel := context.WithTimeout(pl.ctx, time.Duration(pl.ttl)*time.Second)
		_, err := pl.client.Put(putCtx, pl.key, pl.val, v3.WithLease(session.Lease()))
		cancel()
		if err != nil {
			return errors.Wrapf(err, "error writing key %s", pl.key)
		}

		select {
		case <-pl.ctx.Done():
			return nil
		case <-session.Done():
			return errSessionExpired
		case <-pl.deletedCh:
		case pl.val = <-pl.valCh:
		}
	}
}

// watchDeletes notifies keepalive when something other than lease expiry
// removes the key
func (pl *PersistentLease) watchDeletes() error {
	for resp := range pl.client.Watch(pl.ctx, pl.key) {
		if err := resp.Err(); err != nil {
			return err
		}

		for _, e := range resp.Events {
			if e.Type != v3.EventTypeDelete {
				continue
			}

			select {
			case pl.deletedCh <- struct{}{}:
			default:
			}
		}
	}

	if pl.ctx.Err() != nil {
		return nil
	}
	return errWatchClosed
}
