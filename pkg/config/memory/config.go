package memory

import (
	"context"
	"sync"

	"github.com/ovmcloud/ocfs2-manager/pkg/config"
)

// Config is a config.Config held in memory, for tests and manual overrides.
// A nil value reads as config.ErrNoValue.
type Config struct {
	mu       sync.RWMutex
	value    interface{}
	err      error
	shutdown bool
}

func NewConfig(value interface{}) *Config {
	return &Config{value: value}
}

// Get implements config.Config.Get
func (c *Config) Get(_ context.Context) (interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case c.shutdown:
		return nil, config.ErrShutdown
	case c.err != nil:
		return nil, c.err
	case c.value == nil:
		return nil, config.ErrNoValue
	default:
		return c.value, nil
	}
}

// Shutdown implements config.Config.Shutdown
func (c *Config) Shutdown() {
	c.update(func() { c.shutdown = true })
}

func (c *Config) SetValue(value interface{}) {
	c.update(func() { c.value = value })
}

// ClearValue makes subsequent reads return config.ErrNoValue
func (c *Config) ClearValue() {
	c.SetValue(nil)
}

// InduceError makes subsequent reads fail with err until it is called again
// with nil
func (c *Config) InduceError(err error) {
	c.update(func() { c.err = err })
}

func (c *Config) update(fn func()) {
	c.mu.Lock()
	fn()
	c.mu.Unlock()
}
