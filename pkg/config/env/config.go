package env

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/ovmcloud/ocfs2-manager/pkg/config"
	"github.com/ovmcloud/ocfs2-manager/pkg/config/wrapper"
)

type conf struct {
	name string
}

// NewConfig returns a config backed by the environment variable named key,
// upper cased. The variable is read on every Get, with surrounding whitespace
// trimmed. An empty variable is treated as unset.
func NewConfig(key string) config.Config {
	return &conf{name: strings.ToUpper(key)}
}

func (c *conf) Get(_ context.Context) (interface{}, error) {
	val := strings.TrimSpace(os.Getenv(c.name))
	if len(val) == 0 {
		return nil, config.ErrNoValue
	}
	return []byte(val), nil
}

func (c *conf) Shutdown() {}

func NewUint64Config(key string, defaultValue uint64) config.Uint64 {
	return wrapper.NewUint64Config(NewConfig(key), defaultValue)
}

func NewFloat64Config(key string, defaultValue float64) config.Float64 {
	return wrapper.NewFloat64Config(NewConfig(key), defaultValue)
}

func NewStringConfig(key string, defaultValue string) config.String {
	return wrapper.NewStringConfig(NewConfig(key), defaultValue)
}

func NewBoolConfig(key string, defaultValue bool) config.Bool {
	return wrapper.NewBoolConfig(NewConfig(key), defaultValue)
}

func NewDurationConfig(key string, defaultValue time.Duration) config.Duration {
	return wrapper.NewDurationConfig(NewConfig(key), defaultValue)
}
