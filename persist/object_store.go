package persist

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/rushteam/tunekit/core"
)

// ObjectAPI 是 ObjectStore 需要的最小接口，*minio.Client 实现了它。
type ObjectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// ObjectStoreConfig 对象存储配置。
type ObjectStoreConfig struct {
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
	Region          string `mapstructure:"region" yaml:"region"`
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix"`
}

// ObjectStore 把每条记录写成一个 JSON 对象，key 为 [prefix/]kind/yyyy/mm/dd/id.json。
type ObjectStore struct {
	client ObjectAPI
	bucket string
	prefix string
}

func NewObjectStore(client ObjectAPI, bucket, prefix string) *ObjectStore {
	return &ObjectStore{client: client, bucket: bucket, prefix: prefix}
}

// ConnectObjectStore 创建 minio 客户端，bucket 不存在时创建。
func ConnectObjectStore(ctx context.Context, cfg ObjectStoreConfig) (*ObjectStore, error) {
	if cfg.Bucket == "" {
		return nil, core.InvalidInput(core.ModulePersist, "persist: object store bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("persist: create minio client: %w", err)
	}
	s := NewObjectStore(client, cfg.Bucket, cfg.Prefix)
	if err := s.EnsureBucket(ctx, cfg.Region); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ObjectStore) EnsureBucket(ctx context.Context, region string) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("persist: check bucket %s: %w", s.bucket, err)
	}
	if ok {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("persist: make bucket %s: %w", s.bucket, err)
	}
	return nil
}

// ObjectKey 返回记录的对象 key。
func (s *ObjectStore) ObjectKey(meta core.RecordMetadata) string {
	ts := meta.Timestamp.UTC()
	return path.Join(s.prefix, meta.Kind, ts.Format("2006"), ts.Format("01"), ts.Format("02"), meta.ID+".json")
}

func (s *ObjectStore) Save(ctx context.Context, kind string, record any, meta core.RecordMetadata) error {
	meta, err := normalizeMeta(kind, meta)
	if err != nil {
		return err
	}
	_, doc, err := encode(record, meta)
	if err != nil {
		return err
	}
	key := s.ObjectKey(meta)
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(doc), int64(len(doc)), minio.PutObjectOptions{
		ContentType: "application/json",
		UserMetadata: map[string]string{
			"kind":    meta.Kind,
			"version": meta.Version,
		},
	})
	if err != nil {
		return fmt.Errorf("persist: put %s: %w", key, err)
	}
	return nil
}
