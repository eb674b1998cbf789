package manager

import (
	"time"

	"github.com/ovmcloud/ocfs2-manager/pkg/config"
	"github.com/ovmcloud/ocfs2-manager/pkg/config/env"
	"github.com/ovmcloud/ocfs2-manager/pkg/config/memory"
	"github.com/ovmcloud/ocfs2-manager/pkg/config/wrapper"
)

const (
	envConfigPrefix = "OCFS2_MANAGER_"

	UseDistributedLockConfigEnvName = envConfigPrefix + "USE_DISTRIBUTED_LOCK"
	defaultUseDistributedLock       = false

	LockTimeoutConfigEnvName = envConfigPrefix + "LOCK_TIMEOUT"
	defaultLockTimeout       = time.Minute
)

type conf struct {
	useDistributedLock config.Bool
	lockTimeout        config.Duration
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			useDistributedLock: env.NewBoolConfig(UseDistributedLockConfigEnvName, defaultUseDistributedLock),
			lockTimeout:        env.NewDurationConfig(LockTimeoutConfigEnvName, defaultLockTimeout),
		}
	}
}

type testOverrides struct {
	useDistributedLock bool
	lockTimeout        time.Duration
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			useDistributedLock: wrapper.NewBoolConfig(memory.NewConfig(overrides.useDistributedLock), defaultUseDistributedLock),
			lockTimeout:        wrapper.NewDurationConfig(memory.NewConfig(overrides.lockTimeout), defaultLockTimeout),
		}
	}
}
