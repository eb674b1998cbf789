package app

import (
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config is the raw "app" section of the config file, handed to App.Init.
// Apps decode it with mapstructure.
type Config map[string]interface{}

// BaseConfig configures the process hosting an App
type BaseConfig struct {
	LogLevel string `mapstructure:"log_level"`

	AppName string `mapstructure:"app_name"`

	ListenAddress         string `mapstructure:"listen_address"`
	InsecureListenAddress string `mapstructure:"insecure_listen_address"`
	DebugListenAddress    string `mapstructure:"debug_listen_address"`

	// TLSCertificate and TLSKey are file URLs, loaded with LoadFile. The
	// secure listener is only started when both are set.
	TLSCertificate string `mapstructure:"tls_certificate"`
	TLSKey         string `mapstructure:"tls_private_key"`

	ShutdownGracePeriod time.Duration `mapstructure:"shutdown_grace_period"`

	EnablePprof  bool `mapstructure:"enable_pprof"`
	EnableExpvar bool `mapstructure:"enable_expvar"`

	// Heap ballast as a fraction of total memory, capped at maxBallastCapacity
	EnableBallast   bool    `mapstructure:"enable_ballast"`
	BallastCapacity float32 `mapstructure:"ballast_capacity"`

	// Restarts the process on a schedule to bound slow leaks
	EnableMemoryLeakCron   bool   `mapstructure:"enable_memory_leak_cron"`
	MemoryLeakCronSchedule string `mapstructure:"memory_leak_cron_schedule"`

	NewRelicLicenseKey string `mapstructure:"new_relic_license_key"`

	AppConfig Config `mapstructure:"app"`
}

const maxBallastCapacity = 0.5

var defaultConfig = BaseConfig{
	LogLevel: "info",

	AppName: "ocfs2-manager",

	ListenAddress:         ":8085",
	InsecureListenAddress: "localhost:8086",
	DebugListenAddress:    ":8123",

	ShutdownGracePeriod: 30 * time.Second,

	EnablePprof:  true,
	EnableExpvar: true,

	EnableBallast:   false,
	BallastCapacity: 0.25,

	EnableMemoryLeakCron:   false,
	MemoryLeakCronSchedule: "0 5 * * *",
}

// Every BaseConfig key can be overridden by the upper cased env variable
var envBindings = []string{
	"log_level",
	"app_name",
	"listen_address",
	"insecure_listen_address",
	"debug_listen_address",
	"tls_certificate",
	"tls_private_key",
	"shutdown_grace_period",
	"enable_pprof",
	"enable_expvar",
	"enable_ballast",
	"ballast_capacity",
	"enable_memory_leak_cron",
	"memory_leak_cron_schedule",
	"new_relic_license_key",
}

func init() {
	viper.AutomaticEnv()
	for _, key := range envBindings {
		_ = viper.BindEnv(key)
	}
}

func (c *BaseConfig) validate() error {
	if len(c.AppName) == 0 {
		return errors.New("app_name is required")
	}

	if len(c.InsecureListenAddress) == 0 {
		return errors.New("insecure_listen_address is required")
	}

	if (len(c.TLSCertificate) == 0) != (len(c.TLSKey) == 0) {
		return errors.New("tls_certificate and tls_private_key must be set together")
	}

	if c.ShutdownGracePeriod <= 0 {
		return errors.New("shutdown_grace_period must be positive")
	}

	if c.EnableMemoryLeakCron {
		if _, err := cron.ParseStandard(c.MemoryLeakCronSchedule); err != nil {
			return errors.Wrap(err, "invalid memory_leak_cron_schedule")
		}
	}

	return nil
}

func (c *BaseConfig) ballastCapacity() float32 {
	if c.BallastCapacity > maxBallastCapacity {
		return maxBallastCapacity
	}
	return c.BallastCapacity
}
