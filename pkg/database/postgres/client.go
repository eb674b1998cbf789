package pg

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws/external"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/rds/rdsutils"
	"github.com/pkg/errors"

	// Registers the New Relic instrumented pgx driver
	_ "github.com/newrelic/go-agent/v3/integrations/nrpgx"
)

const (
	driverName = "nrpgx"

	connMaxIdleTime = time.Hour
	connMaxLifetime = time.Hour
)

type Config struct {
	User               string
	Host               string
	Password           string
	Port               int
	DbName             string
	MaxOpenConnections int
	MaxIdleConnections int

	// UseAwsIam authenticates with an RDS IAM token instead of Password. It
	// is only supported by provisioned Aurora clusters.
	UseAwsIam bool
}

// Open returns a connection pool for config once the database answers a
// ping
func Open(config *Config) (*sql.DB, error) {
	dsn, err := dataSourceName(config)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "error opening db")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "error connecting to db at %s:%d", config.Host, config.Port)
	}

	if config.MaxOpenConnections > 0 {
		db.SetMaxOpenConns(config.MaxOpenConnections)
	}
	if config.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(config.MaxIdleConnections)
	}
	db.SetConnMaxIdleTime(connMaxIdleTime)
	db.SetConnMaxLifetime(connMaxLifetime)

	return db, nil
}

func dataSourceName(config *Config) (string, error) {
	if !config.UseAwsIam {
		// TODO: enable sslmode=verify-full once the RDS CA bundle is shipped with the image
		return fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=disable",
			config.User, config.Password, config.Host, config.Port, config.DbName,
		), nil
	}

	token, err := iamAuthToken(config)
	if err != nil {
		return "", errors.Wrap(err, "error building rds iam auth token")
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s",
		config.Host, config.Port, config.User, token, config.DbName,
	), nil
}

// iamAuthToken generates a short lived password from the ambient AWS
// credentials. The token is only checked when a connection is established.
func iamAuthToken(config *Config) (string, error) {
	awsConfig, err := external.LoadDefaultAWSConfig()
	if err != nil {
		return "", err
	}

	rdsClient := rds.New(awsConfig)
	endpoint := fmt.Sprintf("%s:%d", config.Host, config.Port)
	return rdsutils.BuildAuthToken(endpoint, rdsClient.Region, config.User, rdsClient.Credentials)
}
