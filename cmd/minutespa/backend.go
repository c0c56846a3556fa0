package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/multierr"

	"github.com/minutespa/minutespa/internal/config"
	"github.com/minutespa/minutespa/internal/errors"
	"github.com/minutespa/minutespa/pkg/medium"
)

// loadConfig loads the config named by --config, or the project config, and
// applies the --medium and --store overrides.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFile(flags.configPath)
	} else {
		cfg, err = config.LoadFromWorkingDir()
	}
	if err != nil {
		return nil, err
	}

	if flags.medium != "" {
		cfg.State.Medium = flags.medium
	}
	if flags.store != "" {
		cfg.State.StoreID = flags.store
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	slog.SetDefault(cfg.Logger(os.Stderr))
	return cfg, nil
}

// backend is an opened medium together with whatever owns its resources.
type backend struct {
	medium  medium.Medium
	closers []func() error
}

// Close releases the medium and its underlying handles.
func (b *backend) Close() error {
	err := medium.Close(b.medium)
	for _, c := range b.closers {
		err = multierr.Append(err, c())
	}
	return err
}

// openMedium builds the medium selected by cfg. The "none" medium yields a
// nil medium, so nothing persists.
func openMedium(ctx context.Context, cfg *config.Config) (*backend, error) {
	b := &backend{}

	switch cfg.State.Medium {
	case config.MediumNone:
		return b, nil

	case config.MediumMemory:
		b.medium = medium.NewMemory()

	case config.MediumSQLite:
		db, err := sql.Open("sqlite3", cfg.SQLitePath())
		if err != nil {
			return nil, errors.New("M021").Wrap(err)
		}
		db.SetMaxOpenConns(1)
		var opts []medium.SQLOption
		if cfg.State.SQLite.Table != "" {
			opts = append(opts, medium.WithSQLTableName(cfg.State.SQLite.Table))
		}
		m := medium.NewSQL(db, opts...)
		if err := m.Migrate(ctx); err != nil {
			db.Close()
			return nil, errors.New("M021").
				WithDetail("Failed to create state table in " + cfg.SQLitePath()).
				Wrap(err)
		}
		b.medium = m
		b.closers = append(b.closers, db.Close)

	case config.MediumS3:
		b.medium = medium.NewS3(newS3Client(cfg.State.S3), cfg.State.S3.Bucket, cfg.State.S3.Prefix)

	case config.MediumRemote:
		b.medium = medium.NewRemote(cfg.State.Remote.URL,
			medium.WithHTTPClient(&http.Client{Timeout: cfg.Timeout()}))

	default:
		return nil, errors.New("M201").WithDetailf("Unknown medium %q", cfg.State.Medium)
	}

	if cfg.State.CacheSize > 0 {
		cached, err := medium.NewCached(b.medium, cfg.State.CacheSize)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.medium = cached
	}
	return b, nil
}

// newS3Client builds an S3 client from static environment credentials.
func newS3Client(c config.S3Config) *s3.Client {
	region := c.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	opts := s3.Options{
		Region:       region,
		Credentials:  aws.CredentialsProviderFunc(envCredentials),
		UsePathStyle: c.PathStyle,
	}
	if c.Endpoint != "" {
		opts.BaseEndpoint = aws.String(c.Endpoint)
	}
	return s3.New(opts)
}

func envCredentials(context.Context) (aws.Credentials, error) {
	creds := aws.Credentials{
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Source:          "EnvironmentVariables",
	}
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return aws.Credentials{}, fmt.Errorf("s3 medium: AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
	}
	return creds, nil
}
