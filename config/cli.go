package config

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/peterbourgon/ff/v3"
)

// Cli is the runtime configuration, populated from flags or from the
// matching environment variables (STORAGE_ENDPOINT, QUEUE_URL, ...).
type Cli struct {
	HTTPAddr      string
	DatabaseURL   string
	QueueURL      string
	APIAdminToken string

	StorageEndpoint  string
	StorageBucket    string
	StorageAccessKey string
	StorageSecretKey string
	StorageRegion    string
	StorageUseTLS    bool
	StorageVerifyTLS bool

	WorkerConcurrency  int
	PresignTTLSeconds  int
	StageTimeoutSecond int
}

func (c *Cli) PresignTTL() time.Duration {
	return time.Duration(c.PresignTTLSeconds) * time.Second
}

func (c *Cli) StageTimeout() time.Duration {
	return time.Duration(c.StageTimeoutSecond) * time.Second
}

func DefaultWorkerConcurrency() int {
	n := runtime.NumCPU()
	if n < 2 {
		return 2
	}
	return n
}

// Parse populates cli from command-line arguments and the environment.
// Flag names map to env vars by uppercasing and replacing dashes, so
// -storage-endpoint is also STORAGE_ENDPOINT.
func Parse(cli *Cli, args []string) error {
	fs := flag.NewFlagSet("videoflix-api", flag.ContinueOnError)

	fs.StringVar(&cli.HTTPAddr, "http-addr", "0.0.0.0:8989", "Address to bind the API server to")
	fs.StringVar(&cli.DatabaseURL, "database-url", "", "Postgres connection string")
	fs.StringVar(&cli.QueueURL, "queue-url", "redis://127.0.0.1:6379/0", "Queue broker connection URL")
	fs.StringVar(&cli.APIAdminToken, "api-admin-token", "", "Bearer token required for administrative endpoints")

	fs.StringVar(&cli.StorageEndpoint, "storage-endpoint", "", "Object store base URL")
	fs.StringVar(&cli.StorageBucket, "storage-bucket", "videoflix", "Object store bucket name")
	fs.StringVar(&cli.StorageAccessKey, "storage-access-key", "", "Object store access key")
	fs.StringVar(&cli.StorageSecretKey, "storage-secret-key", "", "Object store secret key")
	fs.StringVar(&cli.StorageRegion, "storage-region", "us-east-1", "Object store region tag")
	fs.BoolVar(&cli.StorageUseTLS, "storage-use-tls", true, "Use TLS when talking to the object store")
	fs.BoolVar(&cli.StorageVerifyTLS, "storage-verify-tls", true, "Verify the object store TLS certificate")

	fs.IntVar(&cli.WorkerConcurrency, "worker-concurrency", DefaultWorkerConcurrency(), "Worker pool size")
	fs.IntVar(&cli.PresignTTLSeconds, "presign-ttl-seconds", 3600, "Default presigned URL validity in seconds")
	fs.IntVar(&cli.StageTimeoutSecond, "pipeline-stage-timeout", 900, "Default per-stage timeout in seconds")
	_ = fs.String("config", "", "config file (optional)")

	if err := ff.Parse(fs, args,
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarNoPrefix(),
	); err != nil {
		return err
	}
	if len(fs.Args()) > 0 {
		return fmt.Errorf("unexpected extra arguments on command line: %v", fs.Args())
	}
	return nil
}

// EnvOrDefault is a small helper for test fixtures.
func EnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
