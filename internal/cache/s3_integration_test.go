// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/corext/corext/internal/testutil"
)

const (
	minioImage  = "minio/minio:RELEASE.2024-01-16T16-07-38Z"
	minioUser   = "corext"
	minioSecret = "corext-secret"
)

// checkTestcontainersAvailable reports whether a container provider can be
// reached. Provider detection may panic without an engine.
func checkTestcontainersAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		return false
	}
	defer provider.Close()
	return true
}

func startMinIO(t *testing.T) string {
	t.Helper()
	testutil.AcquireContainerSlot(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := testcontainers.Run(ctx, minioImage,
		testcontainers.WithExposedPorts("9000/tcp"),
		testcontainers.WithEnv(map[string]string{
			"MINIO_ROOT_USER":     minioUser,
			"MINIO_ROOT_PASSWORD": minioSecret,
		}),
		testcontainers.WithCmd("server", "/data"),
		testcontainers.WithWaitStrategy(wait.ForHTTP("/minio/health/live").WithPort("9000/tcp")),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("starting minio: %v", err)
	}

	endpoint, err := ctr.PortEndpoint(ctx, "9000/tcp", "")
	if err != nil {
		t.Fatalf("minio endpoint: %v", err)
	}
	return endpoint
}

func TestS3_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if !checkTestcontainersAvailable() {
		t.Skip("skipping S3 integration test: testcontainers provider not available")
	}

	endpoint := startMinIO(t)
	s, err := NewS3(S3Config{
		Endpoint:  endpoint,
		Bucket:    "corext-cache",
		AccessKey: minioUser,
		SecretKey: minioSecret,
		Prefix:    "test/",
	})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	key := "http://example.test/app/main.js?x=1@1.0.0"
	if _, ok, err := s.Get(ctx, key); ok || err != nil {
		t.Fatalf("expected miss on an empty bucket, got %v %v", ok, err)
	}
	if err := s.Set(ctx, key, []byte("main()")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := s.Get(ctx, key)
	if err != nil || !ok || string(got) != "main()" {
		t.Errorf("Get = %q, %v, %v", got, ok, err)
	}

	mem, err := NewMemory(8)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := NewLayered(mem, s).Get(ctx, key); !ok {
		t.Fatal("layered cache should hit through to S3")
	}
	if _, ok, _ := mem.Get(ctx, key); !ok {
		t.Error("S3 hit should be copied into the memory tier")
	}
}
