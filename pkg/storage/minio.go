// Package storage 通过 MinIO 对象存储分发索引产物（向量索引与元数据文件）。
package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"legal-rag-go/internal/config"
	"legal-rag-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ArtifactStore 在存储桶的固定前缀下发布和拉取索引文件。
type ArtifactStore struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewArtifactStore 初始化 MinIO 客户端并确保存储桶存在。
func NewArtifactStore(ctx context.Context, cfg config.MinIOConfig) (*ArtifactStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
	}
	log.Infof("MinIO 客户端初始化成功, bucket=%s", cfg.BucketName)
	return &ArtifactStore{client: client, bucket: cfg.BucketName, prefix: cfg.Prefix}, nil
}

// ObjectName 返回本地文件对应的对象名：<prefix>/<文件名>。
func (s *ArtifactStore) ObjectName(localPath string) string {
	return objectName(s.prefix, localPath)
}

func objectName(prefix, localPath string) string {
	base := filepath.Base(localPath)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return base
	}
	return path.Join(prefix, base)
}

// Publish 上传本地文件。
func (s *ArtifactStore) Publish(ctx context.Context, localPath string) error {
	name := s.ObjectName(localPath)
	info, err := s.client.FPutObject(ctx, s.bucket, name, localPath, minio.PutObjectOptions{
		ContentType: contentType(localPath),
	})
	if err != nil {
		return fmt.Errorf("上传 %s 失败: %w", name, err)
	}
	log.Infow("索引产物已发布", "object", name, "size", info.Size)
	return nil
}

// Fetch 下载对象到 localPath：先写同目录临时文件，再 rename 覆盖。
func (s *ArtifactStore) Fetch(ctx context.Context, localPath string) error {
	name := s.ObjectName(localPath)
	dir := filepath.Dir(localPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	tmp := filepath.Join(dir, "."+filepath.Base(localPath)+".download")
	if err := s.client.FGetObject(ctx, s.bucket, name, tmp, minio.GetObjectOptions{}); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("下载 %s 失败: %w", name, err)
	}
	if err := os.Rename(tmp, localPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("替换本地文件失败: %w", err)
	}
	log.Infow("索引产物已拉取", "object", name, "path", localPath)
	return nil
}

// FetchPair 拉取索引与元数据两份文件，任一失败即返回错误。
func (s *ArtifactStore) FetchPair(ctx context.Context, indexPath, metadataPath string) error {
	for _, p := range []string{indexPath, metadataPath} {
		if err := s.Fetch(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// PublishPair 上传索引与元数据两份文件。
func (s *ArtifactStore) PublishPair(ctx context.Context, indexPath, metadataPath string) error {
	for _, p := range []string{indexPath, metadataPath} {
		if err := s.Publish(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func contentType(localPath string) string {
	if strings.EqualFold(filepath.Ext(localPath), ".json") {
		return "application/json"
	}
	return "application/octet-stream"
}
