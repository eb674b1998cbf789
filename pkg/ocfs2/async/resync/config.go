package async_resync

import (
	"github.com/ovmcloud/ocfs2-manager/pkg/config"
	"github.com/ovmcloud/ocfs2-manager/pkg/config/env"
	"github.com/ovmcloud/ocfs2-manager/pkg/config/memory"
	"github.com/ovmcloud/ocfs2-manager/pkg/config/wrapper"
)

const (
	envConfigPrefix = "OCFS2_RESYNC_"

	ScheduleConfigEnvName = envConfigPrefix + "SCHEDULE"
	defaultSchedule       = ""

	ClusterConcurrencyConfigEnvName = envConfigPrefix + "CLUSTER_CONCURRENCY"
	defaultClusterConcurrency       = 4
)

type conf struct {
	schedule           config.String
	clusterConcurrency config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			schedule:           env.NewStringConfig(ScheduleConfigEnvName, defaultSchedule),
			clusterConcurrency: env.NewUint64Config(ClusterConcurrencyConfigEnvName, defaultClusterConcurrency),
		}
	}
}

type testOverrides struct {
	schedule           string
	clusterConcurrency uint64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			schedule:           wrapper.NewStringConfig(memory.NewConfig(overrides.schedule), defaultSchedule),
			clusterConcurrency: wrapper.NewUint64Config(memory.NewConfig(overrides.clusterConcurrency), defaultClusterConcurrency),
		}
	}
}
