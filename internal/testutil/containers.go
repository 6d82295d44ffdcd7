package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cloo-solutions/askme/internal/storage"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	rustFSAccessKey = "rustfsadmin"
	rustFSSecretKey = "rustfsadmin"
	rustFSRegion    = "us-east-1"
)

// RustFSContainer is an S3-compatible object store for tests
type RustFSContainer struct {
	Container testcontainers.Container
	Host      string
	Port      string
}

// NewRustFSContainer creates and starts a RustFS container
func NewRustFSContainer(ctx context.Context, t *testing.T) *RustFSContainer {
	req := testcontainers.ContainerRequest{
		Image:        "rustfs/rustfs:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"RUSTFS_ACCESS_KEY": rustFSAccessKey,
			"RUSTFS_SECRET_KEY": rustFSSecretKey,
		},
		WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to create rustfs container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "9000")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	return &RustFSContainer{
		Container: container,
		Host:      host,
		Port:      port.Port(),
	}
}

// Endpoint returns the RustFS endpoint URL
func (rc *RustFSContainer) Endpoint() string {
	return fmt.Sprintf("http://%s:%s", rc.Host, rc.Port)
}

// S3Config returns a client config for bucket on this container
func (rc *RustFSContainer) S3Config(bucket, prefix string) storage.S3ClientConfig {
	return storage.S3ClientConfig{
		Endpoint:        rc.Endpoint(),
		Region:          rustFSRegion,
		AccessKeyID:     rustFSAccessKey,
		SecretAccessKey: rustFSSecretKey,
		Bucket:          bucket,
		Prefix:          prefix,
		UsePathStyle:    true,
	}
}

// Env returns ASKME_* variables pointing the S3 state backend at this container
func (rc *RustFSContainer) Env(bucket string) []string {
	return []string{
		"ASKME_STATE_BACKEND=s3",
		"ASKME_S3_ENDPOINT=" + rc.Endpoint(),
		"ASKME_S3_REGION=" + rustFSRegion,
		"ASKME_S3_ACCESS_KEY_ID=" + rustFSAccessKey,
		"ASKME_S3_SECRET_ACCESS_KEY=" + rustFSSecretKey,
		"ASKME_S3_BUCKET=" + bucket,
	}
}

// Terminate stops and removes the container
func (rc *RustFSContainer) Terminate(ctx context.Context) error {
	return testcontainers.TerminateContainer(rc.Container)
}

// NewS3Store starts a container, creates bucket and returns a client for it.
// The container is removed when the test ends.
func NewS3Store(ctx context.Context, t *testing.T, bucket string) *storage.S3Client {
	t.Helper()
	rc := NewRustFSContainer(ctx, t)
	t.Cleanup(func() { rc.Terminate(context.Background()) })

	client, err := storage.NewS3Client(ctx, rc.S3Config(bucket, "askme"))
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}
	return client
}
