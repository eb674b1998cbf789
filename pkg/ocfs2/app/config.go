package app

import (
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	pg "github.com/ovmcloud/ocfs2-manager/pkg/database/postgres"
	grpc_app "github.com/ovmcloud/ocfs2-manager/pkg/grpc/app"
)

// config is decoded from the "app" section of the process config
type config struct {
	// An empty host runs against in memory stores, which is only useful for
	// local development.
	DbHost               string `mapstructure:"db_host"`
	DbPort               int    `mapstructure:"db_port"`
	DbUser               string `mapstructure:"db_user"`
	DbPassword           string `mapstructure:"db_password"`
	DbName               string `mapstructure:"db_name"`
	DbUseAwsIam          bool   `mapstructure:"db_use_aws_iam"`
	DbMaxOpenConnections int    `mapstructure:"db_max_open_connections"`
	DbMaxIdleConnections int    `mapstructure:"db_max_idle_connections"`

	// Without endpoints, the host watcher and distributed locks are disabled
	EtcdEndpoints   []string      `mapstructure:"etcd_endpoints"`
	EtcdDialTimeout time.Duration `mapstructure:"etcd_dial_timeout"`
	EtcdHostPrefix  string        `mapstructure:"etcd_host_prefix"`
	EtcdLockPrefix  string        `mapstructure:"etcd_lock_prefix"`
	EtcdLockTTL     time.Duration `mapstructure:"etcd_lock_ttl"`
	EtcdLogLevel    string        `mapstructure:"etcd_log_level"`

	// Upper bound on a single resync sweep
	ResyncSweepTimeout time.Duration `mapstructure:"resync_sweep_timeout"`
}

var defaultConfig = config{
	DbPort:               5432,
	DbMaxOpenConnections: 10,
	DbMaxIdleConnections: 5,

	EtcdDialTimeout: 5 * time.Second,
	EtcdHostPrefix:  "/ocfs2/hosts/",
	EtcdLockPrefix:  "/ocfs2/locks/",
	EtcdLockTTL:     10 * time.Second,
	EtcdLogLevel:    "warn",

	ResyncSweepTimeout: 10 * time.Minute,
}

func loadConfig(raw grpc_app.Config) (*config, error) {
	c := defaultConfig

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		Result:           &c,
	})
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(map[string]interface{}(raw)); err != nil {
		return nil, errors.Wrap(err, "invalid app config")
	}
	return &c, nil
}

func (c *config) hasDatabase() bool {
	return len(c.DbHost) > 0
}

func (c *config) hasEtcd() bool {
	return len(c.EtcdEndpoints) > 0
}

func (c *config) dbConfig() *pg.Config {
	return &pg.Config{
		User:               c.DbUser,
		Host:               c.DbHost,
		Password:           c.DbPassword,
		Port:               c.DbPort,
		DbName:             c.DbName,
		MaxOpenConnections: c.DbMaxOpenConnections,
		MaxIdleConnections: c.DbMaxIdleConnections,
		UseAwsIam:          c.DbUseAwsIam,
	}
}
