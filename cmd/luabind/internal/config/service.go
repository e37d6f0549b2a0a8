package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/haivivi/luabind/pkg/kv"
	"github.com/haivivi/luabind/pkg/storage"
)

// FileStore builds the script lookup chain: the scripts dir, then the S3
// prefix, then fallback (usually the embedded lessons). dirOverride
// replaces Scripts.Dir when set.
func (c *Config) FileStore(dirOverride string, fallback storage.FileStore) (storage.FileStore, error) {
	var chain storage.Chain

	dir := c.Scripts.Dir
	if dirOverride != "" {
		dir = dirOverride
	}
	if dir != "" {
		local, err := storage.NewLocal(dir)
		if err != nil {
			return nil, err
		}
		chain = append(chain, local)
	}
	if s := c.Scripts.S3; s != nil {
		chain = append(chain, storage.NewS3(newS3Client(s), s.Bucket, s.Prefix))
	}
	if fallback != nil {
		chain = append(chain, fallback)
	}
	return chain, nil
}

// newS3Client creates an S3 client. Credentials come from the standard
// AWS_* environment variables; without them requests are anonymous.
func newS3Client(cfg *S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.PathStyle,
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	if id := os.Getenv("AWS_ACCESS_KEY_ID"); id != "" {
		creds := aws.Credentials{
			AccessKeyID:     id,
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			Source:          "environment",
		}
		opts.Credentials = aws.NewCredentialsCache(aws.CredentialsProviderFunc(
			func(context.Context) (aws.Credentials, error) { return creds, nil },
		))
	} else {
		opts.Credentials = aws.AnonymousCredentials{}
	}
	return s3.New(opts)
}

// OpenKV opens the configured key-value store. The caller closes it.
func (c *Config) OpenKV(logger *slog.Logger) (kv.Store, error) {
	switch c.KV.Backend {
	case "", BackendMemory:
		return kv.NewMemory(nil), nil
	case BackendBadger:
		store, err := kv.NewBadger(kv.BadgerOptions{Dir: c.KV.Dir, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("open kv: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown kv backend %q", c.KV.Backend)
	}
}
