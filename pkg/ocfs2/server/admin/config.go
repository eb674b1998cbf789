package admin

import (
	"github.com/ovmcloud/ocfs2-manager/pkg/config"
	"github.com/ovmcloud/ocfs2-manager/pkg/config/env"
	"github.com/ovmcloud/ocfs2-manager/pkg/config/memory"
	"github.com/ovmcloud/ocfs2-manager/pkg/config/wrapper"
)

const (
	envConfigPrefix = "OCFS2_ADMIN_"

	PrepareRateLimitConfigEnvName = envConfigPrefix + "PREPARE_RATE_LIMIT"
	defaultPrepareRateLimit       = 1.0
)

type conf struct {
	// Preparations per second, per cluster
	prepareRateLimit config.Float64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			prepareRateLimit: env.NewFloat64Config(PrepareRateLimitConfigEnvName, defaultPrepareRateLimit),
		}
	}
}

type testOverrides struct {
	prepareRateLimit float64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			prepareRateLimit: wrapper.NewFloat64Config(memory.NewConfig(overrides.prepareRateLimit), defaultPrepareRateLimit),
		}
	}
}
