package test

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	_ "github.com/jackc/pgx/v4/stdlib" //nolint:revive

	"github.com/ovmcloud/ocfs2-manager/pkg/retry"
	"github.com/ovmcloud/ocfs2-manager/pkg/retry/backoff"
)

const (
	imageName         = "postgres"
	imageTag          = "13"
	containerAutoKill = 120 * time.Second

	port     = 5432
	user     = "ocfs2test"
	password = "ocfs2password"
	dbname   = "ocfs2"

	maxConnectAttempts = 50
	connectInterval    = 500 * time.Millisecond
)

// StartPostgresDB runs a throwaway postgres container and returns a pool
// connected to it. Tables are left for the caller to create. closeFunc
// removes the container and is always safe to call.
func StartPostgresDB(pool *dockertest.Pool) (db *sql.DB, closeFunc func(), err error) {
	log := logrus.StandardLogger().WithField("method", "StartPostgresDB")
	closeFunc = func() {}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: imageName,
		Tag:        imageTag,
		Env: []string{
			"listen_addresses = '*'",
			"POSTGRES_USER=" + user,
			"POSTGRES_PASSWORD=" + password,
			"POSTGRES_DB=" + dbname,
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, closeFunc, errors.Wrap(err, "error starting postgres container")
	}

	// Expire never fails. Raise containerAutoKill if test runs are slow.
	_ = resource.Expire(uint(containerAutoKill.Seconds()))

	closeFunc = func() {
		if err := pool.Purge(resource); err != nil {
			log.WithError(err).Error("error purging postgres container")
		}
	}

	databaseUrl := fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=disable",
		user, password, resource.GetHostPort(fmt.Sprintf("%d/tcp", port)), dbname,
	)

	_, err = retry.Retry(
		func() error {
			db, err = sql.Open("pgx", databaseUrl)
			if err != nil {
				return err
			}

			if err := db.Ping(); err != nil {
				db.Close()
				return err
			}
			return nil
		},
		retry.Limit(maxConnectAttempts),
		retry.Backoff(backoff.Constant(connectInterval), connectInterval),
	)
	if err != nil {
		closeFunc()
		return nil, func() {}, errors.Wrap(err, "timed out waiting for postgres container")
	}

	return db, closeFunc, nil
}
