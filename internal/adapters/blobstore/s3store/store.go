package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/core/document"
)

// API は Store が利用する S3 クライアントの操作です。
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Options は S3 ストアの接続設定です。
type Options struct {
	Bucket   string
	Region   string
	Prefix   string
	Endpoint string
}

// Store は S3 互換ストレージに添付書類を保存します。
type Store struct {
	client API
	bucket string
	prefix string
}

// New は任意の API 実装から Store を生成します。
func New(client API, bucket, prefix string) (*Store, error) {
	if client == nil {
		return nil, errors.New("s3store: client is required")
	}
	if bucket == "" {
		return nil, errors.New("s3store: bucket is required")
	}
	return &Store{client: client, bucket: bucket, prefix: prefix}, nil
}

// NewFromConfig は既定の AWS 認証情報チェーンからクライアントを作成します。
// Endpoint が指定された場合は LocalStack などを想定してパス形式で接続します。
func NewFromConfig(ctx context.Context, opts Options) (*Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3store: load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return New(client, opts.Bucket, opts.Prefix)
}

// Put は書類をアップロードします。
func (s *Store) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(objectKey),
		Body:                 body,
		ContentType:          aws.String(contentType),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3store: put %s: %w", objectKey, err)
	}
	return nil
}

// Open は書類の本文を返します。
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%s: %w", key, document.ErrBlobNotFound)
		}
		return nil, fmt.Errorf("s3store: get %s: %w", objectKey, err)
	}
	return out.Body, nil
}

// Delete は書類を削除します。
func (s *Store) Delete(ctx context.Context, key string) error {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return err
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	}); err != nil {
		return fmt.Errorf("s3store: delete %s: %w", objectKey, err)
	}
	return nil
}

func (s *Store) objectKey(key string) (string, error) {
	if err := document.ValidateKey(key); err != nil {
		return "", err
	}
	if s.prefix == "" {
		return key, nil
	}
	return path.Join(s.prefix, key), nil
}
