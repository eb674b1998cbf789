package etcd

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.etcd.io/etcd/api/v3/mvccpb"
	v3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"

	"github.com/ovmcloud/ocfs2-manager/pkg/lock"
	"github.com/ovmcloud/ocfs2-manager/pkg/retry"
	"github.com/ovmcloud/ocfs2-manager/pkg/retry/backoff"
)

var (
	ErrManagerClosed     = errors.New("lock manager is closed")
	ErrConcurrentAcquire = errors.New("lock cannot be acquired concurrently")
)

// LockManager hands out etcd election based locks under a root key. All locks
// share one session, so two locks with the same name from the same manager
// are re-entrant, and closing the manager releases every lock it holds.
type LockManager struct {
	log     *logrus.Entry
	client  *v3.Client
	rootKey string
	ttl     int
	owner   string

	closeOnce sync.Once
	closeCh   chan struct{}

	sessionMu sync.Mutex
	session   *concurrency.Session
}

// NewLockManager creates a LockManager whose session expires ttl after the
// process stops refreshing it. owner is stored as the value of held locks.
func NewLockManager(client *v3.Client, rootKey string, ttl time.Duration, owner string) (*LockManager, error) {
	// etcd silently replaces ttls outside this range with 60s
	if ttl < time.Second || ttl > time.Minute {
		return nil, errors.Errorf("invalid lock ttl %v", ttl)
	}

	lm := &LockManager{
		log: logrus.StandardLogger().WithFields(logrus.Fields{
			"type": "lock/etcd/LockManager",
			"root": rootKey,
		}),
		client:  client,
		rootKey: rootKey,
		ttl:     int(ttl.Round(time.Second).Seconds()),
		owner:   owner,
		closeCh: make(chan struct{}),
	}

	session, err := lm.newSession()
	if err != nil {
		return nil, errors.Wrap(err, "error creating etcd session")
	}
	lm.session = session

	go lm.renewSessions()

	return lm, nil
}

// Create implements lock.Manager.Create
func (lm *LockManager) Create(_ context.Context, name string) (lock.DistributedLock, error) {
	if _, err := lm.currentSession(); err != nil {
		return nil, err
	}

	return &Lock{
		log: lm.log.WithFields(logrus.Fields{
			"type": "lock/etcd/Lock",
			"name": name,
		}),
		lm:  lm,
		key: path.Join(lm.rootKey, name),
	}, nil
}

// Close releases every lock held through the manager. Subsequent calls to
// Create or Acquire fail with ErrManagerClosed.
func (lm *LockManager) Close() {
	lm.closeOnce.Do(func() {
		lm.sessionMu.Lock()
		defer lm.sessionMu.Unlock()

		close(lm.closeCh)
		if err := lm.session.Close(); err != nil {
			lm.log.WithError(err).Warn("failure closing etcd session")
		}
		lm.session = nil
	})
}

func (lm *LockManager) newSession() (*concurrency.Session, error) {
	return concurrency.NewSession(
		lm.client,
		concurrency.WithTTL(lm.ttl),
		concurrency.WithContext(v3.WithRequireLeader(context.Background())),
	)
}

func (lm *LockManager) currentSession() (*concurrency.Session, error) {
	lm.sessionMu.Lock()
	defer lm.sessionMu.Unlock()

	if lm.session == nil {
		return nil, ErrManagerClosed
	}
	return lm.session, nil
}

// renewSessions replaces the session whenever it ends for a reason other than
// Close. A session can end for good when the cluster loses its leader, and
// locks only become available again once a new one exists.
func (lm *LockManager) renewSessions() {
	for {
		session, err := lm.currentSession()
		if err != nil {
			return
		}

		select {
		case <-lm.closeCh:
			return
		case <-session.Done():
		}

		lm.log.Info("lock session expired, recreating")

		_, err = retry.Retry(
			func() error {
				select {
				case <-lm.closeCh:
					return ErrManagerClosed
				default:
				}

				session, err := lm.newSession()
				if err != nil {
					return err
				}

				lm.sessionMu.Lock()
				defer lm.sessionMu.Unlock()

				if lm.session == nil {
					session.Close()
					return ErrManagerClosed
				}
				lm.session = session
				return nil
			},
			retry.NonRetriableErrors(ErrManagerClosed),
			func(_ uint, err error) bool {
				lm.log.WithError(err).Warn("failure recreating lock session")
				return true
			},
			retry.BackoffWithJitter(backoff.Constant(time.Second), time.Second, 0.1),
		)
		if err != nil {
			return
		}
	}
}

// Lock is a lock.DistributedLock backed by an etcd election
type Lock struct {
	log *logrus.Entry
	lm  *LockManager
	key string

	electionMu sync.Mutex
	election   *concurrency.Election
}

// Acquire implements lock.DistributedLock.Acquire
func (l *Lock) Acquire(ctx context.Context) (<-chan struct{}, error) {
	l.electionMu.Lock()
	defer l.electionMu.Unlock()

	session, err := l.lm.currentSession()
	if err != nil {
		return nil, err
	}

	if l.election != nil {
		return nil, ErrConcurrentAcquire
	}

	heldCtx, release := context.WithCancel(ctx)
	election := concurrency.NewElection(session, l.key)
	if err := election.Campaign(heldCtx, l.lm.owner); err != nil {
		release()
		return nil, errors.Wrap(err, "error campaigning for lock")
	}
	l.election = election

	l.log.Debug("lock acquired")

	watchCh := session.Client().Watch(
		v3.WithRequireLeader(heldCtx),
		election.Key(),
		v3.WithRev(election.Rev()),
	)

	lostCh := make(chan struct{})
	go func() {
		defer release()
		defer l.resign(election)

		// Notify before resigning, which blocks while the cluster is leaderless
		defer close(lostCh)

		l.monitor(session, election, watchCh)
	}()

	return lostCh, nil
}

// monitor returns once the lock may no longer be held
func (l *Lock) monitor(session *concurrency.Session, election *concurrency.Election, watchCh v3.WatchChan) {
	for {
		select {
		case <-session.Done():
			l.log.Warn("lock session ended, releasing lock")
			return
		case resp, ok := <-watchCh:
			if !ok {
				return
			}

			if err := resp.Err(); err != nil {
				l.log.WithError(err).Warn("failure watching lock key")
				return
			}

			for _, event := range resp.Events {
				switch event.Type {
				case mvccpb.PUT:
					if event.Kv.CreateRevision != election.Rev() {
						l.log.Warn("lock key was recreated, releasing lock")
						return
					}
				case mvccpb.DELETE:
					l.log.Debug("lock key deleted")
					return
				}
			}
		}
	}
}

func (l *Lock) resign(election *concurrency.Election) {
	l.electionMu.Lock()
	defer l.electionMu.Unlock()

	// Already released by Unlock
	if l.election != election {
		return
	}

	// The acquiring context may be the reason the lock was lost
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(l.lm.ttl)*time.Second)
	defer cancel()

	if err := election.Resign(ctx); err != nil {
		l.log.WithError(err).Warn("failure resigning lock")
	}
	l.election = nil
}

// Unlock implements lock.DistributedLock.Unlock
func (l *Lock) Unlock(ctx context.Context) error {
	l.electionMu.Lock()
	defer l.electionMu.Unlock()

	if l.election == nil {
		return nil
	}

	err := l.election.Resign(ctx)
	l.election = nil
	return err
}

// IsLocked implements lock.DistributedLock.IsLocked
func (l *Lock) IsLocked() bool {
	l.electionMu.Lock()
	defer l.electionMu.Unlock()

	return l.election != nil && l.election.Key() != ""
}
