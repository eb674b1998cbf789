package app

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	v3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	grpc_app "github.com/ovmcloud/ocfs2-manager/pkg/grpc/app"
	"github.com/ovmcloud/ocfs2-manager/pkg/lock"
	lock_etcd "github.com/ovmcloud/ocfs2-manager/pkg/lock/etcd"
	"github.com/ovmcloud/ocfs2-manager/pkg/metrics"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/agent"
	async_listener "github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/async/listener"
	async_resync "github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/async/resync"
	ocfs2_data "github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/manager"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/resource"
	resource_etcd "github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/resource/etcd"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/server/admin"
)

type app struct {
	log *logrus.Entry

	data     ocfs2_data.Provider
	bus      resource.EventBus
	manager  manager.Manager
	listener *async_listener.Listener
	admin    admin.AdminServer

	etcdClient *v3.Client
	locks      *lock_etcd.LockManager

	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	stopOnce     sync.Once
}

// New returns the membership manager application
func New() grpc_app.App {
	return &app{
		log:        logrus.StandardLogger().WithField("type", "ocfs2/app"),
		shutdownCh: make(chan struct{}),
	}
}

// Init implements grpc_app.App.Init
func (a *app) Init(rawConfig grpc_app.Config, metricsProvider *newrelic.Application) error {
	conf, err := loadConfig(rawConfig)
	if err != nil {
		return err
	}

	a.ctx, a.cancel = context.WithCancel(context.Background())
	if metricsProvider != nil {
		a.ctx = context.WithValue(a.ctx, metrics.NewRelicContextKey{}, metricsProvider)
	}

	if conf.hasDatabase() {
		a.data, err = ocfs2_data.NewDataProvider(conf.dbConfig())
		if err != nil {
			return errors.Wrap(err, "error creating data provider")
		}
	} else {
		a.log.Warn("no database configured, using in memory stores")
		a.data = ocfs2_data.NewTestDataProvider()
	}

	var distributedLocks lock.Manager
	if conf.hasEtcd() {
		a.etcdClient, err = newEtcdClient(conf)
		if err != nil {
			return errors.Wrap(err, "error creating etcd client")
		}

		hostname, _ := os.Hostname()
		a.locks, err = lock_etcd.NewLockManager(
			a.etcdClient,
			conf.EtcdLockPrefix,
			conf.EtcdLockTTL,
			fmt.Sprintf("%s/%d", hostname, os.Getpid()),
		)
		if err != nil {
			return errors.Wrap(err, "error creating lock manager")
		}
		distributedLocks = a.locks
	}

	a.bus = resource.NewEventBus()
	a.manager = manager.NewSerializedManager(
		manager.NewManager(a.data, agent.NewHttpDispatcher(a.data, agent.WithEnvConfigs())),
		distributedLocks,
		manager.WithEnvConfigs(),
	)

	a.listener = async_listener.New(a.manager, a.bus)
	if err := a.listener.Start(); err != nil {
		return errors.Wrap(err, "error starting lifecycle listener")
	}

	a.admin = admin.NewAdminServer(a.data, a.manager, a.bus, admin.WithEnvConfigs())

	resync := async_resync.New(a.data, a.manager, async_resync.WithEnvConfigs())
	a.goRun("resync", func(ctx context.Context) error {
		return resync.Start(ctx, conf.ResyncSweepTimeout)
	})

	if a.etcdClient != nil {
		watcher := resource_etcd.NewHostWatcher(a.etcdClient, conf.EtcdHostPrefix, a.data, a.bus)
		a.goRun("host watcher", watcher.Run)
	}

	return nil
}

// RegisterWithGRPC implements grpc_app.App.RegisterWithGRPC
func (a *app) RegisterWithGRPC(server *grpc.Server) {
	admin.RegisterAdminServer(server, a.admin)
}

// ShutdownChan implements grpc_app.App.ShutdownChan
func (a *app) ShutdownChan() <-chan struct{} {
	return a.shutdownCh
}

// Stop implements grpc_app.App.Stop
func (a *app) Stop() {
	a.stopOnce.Do(func() {
		if a.listener != nil {
			a.listener.Stop()
		}

		if a.cancel != nil {
			a.cancel()
		}
		a.wg.Wait()

		if a.locks != nil {
			a.locks.Close()
		}
		if a.etcdClient != nil {
			if err := a.etcdClient.Close(); err != nil {
				a.log.WithError(err).Warn("failed to close etcd client")
			}
		}
	})
}

// goRun runs a background component for the lifetime of the app. A component
// that exits on its own takes the whole app down.
func (a *app) goRun(name string, fn func(ctx context.Context) error) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		err := fn(a.ctx)
		if err == nil || err == context.Canceled {
			return
		}

		a.log.WithError(err).WithField("component", name).Error("background component terminated unexpectedly")
		a.shutdownOnce.Do(func() {
			close(a.shutdownCh)
		})
	}()
}

func newEtcdClient(conf *config) (*v3.Client, error) {
	zapConfig := zap.NewProductionConfig()
	level, err := zap.ParseAtomicLevel(conf.EtcdLogLevel)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid etcd log level %q", conf.EtcdLogLevel)
	}
	zapConfig.Level = level

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	return v3.New(v3.Config{
		Endpoints:   conf.EtcdEndpoints,
		DialTimeout: conf.EtcdDialTimeout,
		Logger:      logger,
	})
}
