package infra

import (
	"context"
	"fmt"

	"github.com/minio/madmin-go/v3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tnqbao/gau-ads-orchestrator/config"
)

// MinioClient mirrors canonical library files into object storage.
type MinioClient struct {
	Admin         *madmin.AdminClient
	Client        *minio.Client
	Endpoint      string
	LibraryBucket string
}

func InitMinioClient(cfg *config.EnvConfig) *MinioClient {
	endpoint := cfg.Minio.Endpoint
	if endpoint == "" {
		panic("MinIO endpoint is not configured")
	}

	rootUser := cfg.Minio.RootUser
	if rootUser == "" {
		panic("MinIO root user is not configured")
	}

	rootPassword := cfg.Minio.RootPassword
	if rootPassword == "" {
		panic("MinIO root password is not configured")
	}

	madminClient, err := madmin.New(endpoint, rootUser, rootPassword, cfg.Minio.UseSSL)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize MinIO admin client: %v", err))
	}

	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(rootUser, rootPassword, ""),
		Secure: cfg.Minio.UseSSL,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize MinIO client: %v", err))
	}

	client := &MinioClient{
		Admin:         madminClient,
		Client:        minioClient,
		Endpoint:      endpoint,
		LibraryBucket: cfg.Minio.LibraryBucket,
	}

	if err := client.EnsureBucket(context.Background(), client.LibraryBucket); err != nil {
		panic(fmt.Sprintf("Failed to prepare MinIO library bucket: %v", err))
	}

	return client
}

func (m *MinioClient) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := m.Client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.Client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

// MirrorFile uploads a local library file under objectKey. Existing keys are left alone
// since the key is content addressed.
func (m *MinioClient) MirrorFile(ctx context.Context, objectKey, filePath, contentType string) (bool, error) {
	if _, err := m.Client.StatObject(ctx, m.LibraryBucket, objectKey, minio.StatObjectOptions{}); err == nil {
		return false, nil
	} else if minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return false, fmt.Errorf("failed to stat %s: %w", objectKey, err)
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := m.Client.FPutObject(ctx, m.LibraryBucket, objectKey, filePath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return false, fmt.Errorf("failed to mirror %s: %w", objectKey, err)
	}
	return true, nil
}

func (m *MinioClient) RemoveMirror(ctx context.Context, objectKey string) error {
	if err := m.Client.RemoveObject(ctx, m.LibraryBucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove mirror %s: %w", objectKey, err)
	}
	return nil
}

// HealthCheck reports how many MinIO servers answered the admin info call.
func (m *MinioClient) HealthCheck(ctx context.Context) (int, error) {
	info, err := m.Admin.ServerInfo(ctx)
	if err != nil {
		return 0, fmt.Errorf("minio admin info failed: %w", err)
	}
	online := 0
	for _, server := range info.Servers {
		if server.State == "online" {
			online++
		}
	}
	return online, nil
}
