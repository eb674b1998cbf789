package agent

import (
	"time"

	"github.com/ovmcloud/ocfs2-manager/pkg/config"
	"github.com/ovmcloud/ocfs2-manager/pkg/config/env"
	"github.com/ovmcloud/ocfs2-manager/pkg/config/memory"
	"github.com/ovmcloud/ocfs2-manager/pkg/config/wrapper"
)

const (
	envConfigPrefix = "OCFS2_AGENT_"

	PortConfigEnvName = envConfigPrefix + "PORT"
	defaultPort       = 8250

	PathConfigEnvName = envConfigPrefix + "PATH"
	defaultPath       = "/ocfs2/prepare"

	TimeoutConfigEnvName = envConfigPrefix + "TIMEOUT"
	defaultTimeout       = 30 * time.Second

	SigningSecretConfigEnvName = envConfigPrefix + "SIGNING_SECRET"
	defaultSigningSecret       = ""

	MaxAttemptsConfigEnvName = envConfigPrefix + "MAX_ATTEMPTS"
	defaultMaxAttempts       = 2

	RetryDelayConfigEnvName = envConfigPrefix + "RETRY_DELAY"
	defaultRetryDelay       = 250 * time.Millisecond
)

type conf struct {
	port          config.Uint64
	path          config.String
	timeout       config.Duration
	signingSecret config.String
	maxAttempts   config.Uint64
	retryDelay    config.Duration
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			port:          env.NewUint64Config(PortConfigEnvName, defaultPort),
			path:          env.NewStringConfig(PathConfigEnvName, defaultPath),
			timeout:       env.NewDurationConfig(TimeoutConfigEnvName, defaultTimeout),
			signingSecret: env.NewStringConfig(SigningSecretConfigEnvName, defaultSigningSecret),
			maxAttempts:   env.NewUint64Config(MaxAttemptsConfigEnvName, defaultMaxAttempts),
			retryDelay:    env.NewDurationConfig(RetryDelayConfigEnvName, defaultRetryDelay),
		}
	}
}

type testOverrides struct {
	port          uint64
	timeout       time.Duration
	signingSecret string
	maxAttempts   uint64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			port:          wrapper.NewUint64Config(memory.NewConfig(overrides.port), defaultPort),
			path:          wrapper.NewStringConfig(memory.NewConfig(defaultPath), defaultPath),
			timeout:       wrapper.NewDurationConfig(memory.NewConfig(overrides.timeout), defaultTimeout),
			signingSecret: wrapper.NewStringConfig(memory.NewConfig(overrides.signingSecret), defaultSigningSecret),
			maxAttempts:   wrapper.NewUint64Config(memory.NewConfig(overrides.maxAttempts), defaultMaxAttempts),
			retryDelay:    wrapper.NewDurationConfig(memory.NewConfig(10*time.Millisecond), defaultRetryDelay),
		}
	}
}
