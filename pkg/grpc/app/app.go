package app

import (
	"crypto/tls"
	"expvar"
	"flag"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_logrus "github.com/grpc-ecosystem/go-grpc-middleware/logging/logrus"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	grpc_ctxtags "github.com/grpc-ecosystem/go-grpc-middleware/tags"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"

	grpc_util "github.com/ovmcloud/ocfs2-manager/pkg/grpc"
	"github.com/ovmcloud/ocfs2-manager/pkg/grpc/metrics"
	metrics_util "github.com/ovmcloud/ocfs2-manager/pkg/metrics"
	"github.com/ovmcloud/ocfs2-manager/pkg/osutil"
)

// App is a long lived process component serving gRPC requests.
//
// Init is called before any server accepts connections. Stop is called after
// the servers have stopped serving, and must be idempotent.
type App interface {
	Init(config Config, metricsProvider *newrelic.Application) error

	RegisterWithGRPC(server *grpc.Server)

	// ShutdownChan is closed when the App wants the process to exit
	ShutdownChan() <-chan struct{}

	Stop()
}

var (
	configPath = flag.String("config", "config.yaml", "configuration file path")

	osSigCh = make(chan os.Signal, 1)
)

func init() {
	signal.Notify(osSigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
}

// Run hosts app until a signal is received, a server stops, or the app asks
// to shut down.
func Run(app App, options ...Option) error {
	flag.Parse()

	log := logrus.StandardLogger().WithField("type", "grpc/app")

	config, err := loadBaseConfig(*configPath)
	if err != nil {
		return err
	}

	metricsProvider, err := newMetricsProvider(config)
	if err != nil {
		return err
	}

	configureLogger(config, metricsProvider)

	// pprof and expvar register on the default mux in their init(), so only
	// the debug listener gets to serve them.
	http.DefaultServeMux = http.NewServeMux()
	startDebugServer(config, log)

	ballast := allocateBallast(config)

	memoryLeakCh, err := scheduleMemoryLeakRestart(config)
	if err != nil {
		return err
	}

	l, err := listen(config)
	if err != nil {
		return err
	}

	if err := app.Init(config.AppConfig, metricsProvider); err != nil {
		l.close()
		return errors.Wrap(err, "failed to initialize application")
	}

	serverOpts := buildServerOpts(metricsProvider, options...)

	var servers []*grpc.Server
	insecureServ := newServer(app, serverOpts)
	servers = append(servers, insecureServ)
	insecureDoneCh := serve(log, "insecure", insecureServ, l.insecure)

	var secureDoneCh <-chan struct{}
	if l.secure != nil {
		secureServ := newServer(app, serverOpts, grpc.Creds(l.creds))
		servers = append(servers, secureServ)
		secureDoneCh = serve(log, "secure", secureServ, l.secure)
	}

	select {
	case <-osSigCh:
		log.Info("interrupt received, shutting down")
	case <-secureDoneCh:
		log.Info("secure grpc server shutdown")
	case <-insecureDoneCh:
		log.Info("insecure grpc server shutdown")
	case <-memoryLeakCh:
		log.Info("scheduled restart")
	case <-app.ShutdownChan():
		log.Info("app shutdown")
	}

	err = stopWithin(config.ShutdownGracePeriod, app, servers)

	if len(ballast) > 0 {
		ballast[0] = 1
	}

	return err
}

func loadBaseConfig(path string) (BaseConfig, error) {
	// viper only reports ConfigFileNotFoundError when searching, so a missing
	// explicit file is handled here and falls back to defaults plus env.
	if _, err := os.Stat(path); err == nil {
		viper.SetConfigFile(path)
	} else if !os.IsNotExist(err) {
		return BaseConfig{}, errors.Wrap(err, "failed to check if config exists")
	}

	err := viper.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); err != nil && !ok {
		return BaseConfig{}, errors.Wrap(err, "failed to load config")
	}

	config := defaultConfig
	if err := viper.Unmarshal(&config); err != nil {
		return BaseConfig{}, errors.Wrap(err, "failed to unmarshal config")
	}

	if err := config.validate(); err != nil {
		return BaseConfig{}, errors.Wrap(err, "invalid config")
	}
	return config, nil
}

func newMetricsProvider(config BaseConfig) (*newrelic.Application, error) {
	if len(config.NewRelicLicenseKey) == 0 {
		return nil, nil
	}

	nr, err := newrelic.NewApplication(
		newrelic.ConfigFromEnvironment(),
		newrelic.ConfigAppName(config.AppName),
		newrelic.ConfigLicense(config.NewRelicLicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
	if err != nil {
		return nil, errors.Wrap(err, "error connecting to new relic")
	}
	return nr, nil
}

func debugMux(config BaseConfig) *http.ServeMux {
	mux := http.NewServeMux()
	if config.EnableExpvar {
		mux.Handle("/debug/vars", expvar.Handler())
	}
	if config.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

func startDebugServer(config BaseConfig, log *logrus.Entry) {
	if !config.EnableExpvar && !config.EnablePprof {
		return
	}

	mux := debugMux(config)
	go func() {
		for {
			if err := http.ListenAndServe(config.DebugListenAddress, mux); err != nil {
				log.WithError(err).Warn("debug http server failed, retrying in 5s")
			}
			time.Sleep(5 * time.Second)
		}
	}()
}

func allocateBallast(config BaseConfig) []byte {
	if !config.EnableBallast {
		return nil
	}
	return make([]byte, uint64(config.ballastCapacity()*float32(osutil.GetTotalMemory())))
}

func scheduleMemoryLeakRestart(config BaseConfig) (<-chan struct{}, error) {
	if !config.EnableMemoryLeakCron {
		return nil, nil
	}

	ch := make(chan struct{})
	job := cron.New(cron.WithLocation(time.Local))
	_, err := job.AddFunc(config.MemoryLeakCronSchedule, func() {
		select {
		case <-ch:
		default:
			close(ch)
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize memory leak cron")
	}
	job.Start()
	return ch, nil
}

type listeners struct {
	insecure net.Listener
	secure   net.Listener
	creds    credentials.TransportCredentials
}

func (l *listeners) close() {
	if l.insecure != nil {
		l.insecure.Close()
	}
	if l.secure != nil {
		l.secure.Close()
	}
}

func listen(config BaseConfig) (*listeners, error) {
	l := &listeners{}

	var err error
	l.insecure, err = net.Listen("tcp", config.InsecureListenAddress)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", config.InsecureListenAddress)
	}

	if len(config.TLSCertificate) == 0 {
		return l, nil
	}

	l.creds, err = loadTransportCredentials(config.TLSCertificate, config.TLSKey)
	if err != nil {
		l.close()
		return nil, err
	}

	l.secure, err = net.Listen("tcp", config.ListenAddress)
	if err != nil {
		l.close()
		return nil, errors.Wrapf(err, "failed to listen on %s", config.ListenAddress)
	}
	return l, nil
}

func loadTransportCredentials(certURL, keyURL string) (credentials.TransportCredentials, error) {
	certBytes, err := LoadFile(certURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load tls certificate")
	}

	keyBytes, err := LoadFile(keyURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load tls key")
	}

	cert, err := tls.X509KeyPair(certBytes, keyBytes)
	if err != nil {
		return nil, errors.Wrap(err, "invalid certificate/private key")
	}
	return credentials.NewServerTLSFromCert(&cert), nil
}

// Recovery is innermost so panics reach the logging and metrics interceptors
// as codes.Internal.
func buildServerOpts(metricsProvider *newrelic.Application, options ...Option) *opts {
	rpcLogger := logrus.StandardLogger().WithField("type", "grpc/server")
	decider := grpc_logrus.WithDecider(func(fullMethodName string, err error) bool {
		return err != nil || !grpc_util.IsHealthCheckEndpoint(fullMethodName)
	})

	o := &opts{
		unaryServerInterceptors: []grpc.UnaryServerInterceptor{
			grpc_ctxtags.UnaryServerInterceptor(),
			metrics.CustomNewRelicUnaryServerInterceptor(metricsProvider),
			grpc_logrus.UnaryServerInterceptor(rpcLogger, decider),
			grpc_recovery.UnaryServerInterceptor(),
		},
		streamServerInterceptors: []grpc.StreamServerInterceptor{
			grpc_ctxtags.StreamServerInterceptor(),
			metrics.CustomNewRelicStreamServerInterceptor(metricsProvider),
			grpc_logrus.StreamServerInterceptor(rpcLogger, decider),
			grpc_recovery.StreamServerInterceptor(),
		},
	}
	for _, option := range options {
		option(o)
	}
	return o
}

func newServer(app App, o *opts, extra ...grpc.ServerOption) *grpc.Server {
	serverOpts := append([]grpc.ServerOption{
		grpc_middleware.WithUnaryServerChain(o.unaryServerInterceptors...),
		grpc_middleware.WithStreamServerChain(o.streamServerInterceptors...),
	}, extra...)

	server := grpc.NewServer(serverOpts...)
	app.RegisterWithGRPC(server)
	healthgrpc.RegisterHealthServer(server, health.NewServer())
	return server
}

func serve(log *logrus.Entry, name string, server *grpc.Server, lis net.Listener) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		log := log.WithField("server", name)
		if err := server.Serve(lis); err != nil {
			log.WithError(err).Error("grpc serve stopped")
		} else {
			log.Info("grpc server stopped")
		}
	}()
	return done
}

// stopWithin gracefully stops every server and then the app. Both are
// idempotent, so this is safe regardless of which condition triggered it.
func stopWithin(gracePeriod time.Duration, app App, servers []*grpc.Server) error {
	done := make(chan struct{})
	go func() {
		defer close(done)

		for _, server := range servers {
			server.GracefulStop()
		}
		app.Stop()
	}()

	select {
	case <-done:
		return nil
	case <-time.After(gracePeriod):
		return errors.Errorf("failed to stop the application within %v", gracePeriod)
	}
}

func configureLogger(config BaseConfig, metricsProvider *newrelic.Application) {
	var formatter logrus.Formatter = &logrus.JSONFormatter{}
	if metricsProvider != nil {
		formatter = metrics_util.NewCustomNewRelicLogFormatter(metricsProvider, formatter)
	}
	logrus.SetFormatter(formatter)

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", config.LogLevel).Warn("unknown log level, ignoring")
	} else {
		logrus.SetLevel(level)
	}

	logrus.SetOutput(os.Stdout)
}
