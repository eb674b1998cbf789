package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	grpc_app "github.com/ovmcloud/ocfs2-manager/pkg/grpc/app"
)

func TestLoadConfig_Defaults(t *testing.T) {
	c, err := loadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultConfig, *c)
	assert.False(t, c.hasDatabase())
	assert.False(t, c.hasEtcd())
}

func TestLoadConfig_Overrides(t *testing.T) {
	c, err := loadConfig(grpc_app.Config{
		"db_host":              "db.internal",
		"db_port":              "6432",
		"db_user":              "ocfs2",
		"db_name":              "cloud",
		"db_use_aws_iam":       true,
		"etcd_endpoints":       "etcd-0:2379,etcd-1:2379",
		"etcd_lock_ttl":        "20s",
		"resync_sweep_timeout": "1m",
	})
	require.NoError(t, err)

	assert.True(t, c.hasDatabase())
	assert.True(t, c.hasEtcd())
	assert.Equal(t, []string{"etcd-0:2379", "etcd-1:2379"}, c.EtcdEndpoints)
	assert.Equal(t, 20*time.Second, c.EtcdLockTTL)
	assert.Equal(t, time.Minute, c.ResyncSweepTimeout)
	assert.Equal(t, defaultConfig.EtcdHostPrefix, c.EtcdHostPrefix)

	dbConfig := c.dbConfig()
	assert.Equal(t, "db.internal", dbConfig.Host)
	assert.Equal(t, 6432, dbConfig.Port)
	assert.Equal(t, "ocfs2", dbConfig.User)
	assert.Equal(t, "cloud", dbConfig.DbName)
	assert.True(t, dbConfig.UseAwsIam)
	assert.Equal(t, defaultConfig.DbMaxOpenConnections, dbConfig.MaxOpenConnections)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := loadConfig(grpc_app.Config{
		"etcd_lock_ttl": "soon",
	})
	assert.Error(t, err)
}
