// Package objectstore implements the Object store command taxonomy (§4.3)
// for the minio and s3 service kinds. Both share one aws-sdk-go-v2 S3
// client: MinIO is S3-wire-compatible, so minio is realized as s3 pointed
// at a custom endpoint rather than pulling in a second SDK.
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/nativegate/gateway/internal/domain"
	"github.com/nativegate/gateway/internal/services"
)

func init() {
	services.Register(domain.ServiceKindS3, func(raw json.RawMessage) (services.Task, error) { return newTask(domain.ServiceKindS3, raw) })
	services.Register(domain.ServiceKindMinio, func(raw json.RawMessage) (services.Task, error) { return newTask(domain.ServiceKindMinio, raw) })
}

// Config is the opaque JSON shape for an Object store service. Endpoint is
// required for minio (a self-hosted S3-compatible endpoint); left empty it
// resolves to AWS's default regional endpoint for the s3 kind.
type Config struct {
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint,omitempty"`
	AccessKeyID     string `json:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty"`
	UsePathStyle    bool   `json:"use_path_style,omitempty"`
}

// Handle is the clonable per-request reference to an object store task.
// Every client call runs on the task's owning actor goroutine, serialized
// in arrival order against every other command the task receives (§4.3).
type Handle struct {
	kind   domain.ServiceKind
	client *s3.Client
	actor  *services.Actor
}

func newTask(kind domain.ServiceKind, raw json.RawMessage) (services.Task, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	if kind == domain.ServiceKindMinio && cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required for minio", domain.ErrInvalidConfig)
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	ctx := context.Background()
	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConnectionFailed, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &Handle{kind: kind, client: client, actor: services.NewActor()}, nil
}

func (h *Handle) Kind() domain.ServiceKind { return h.kind }

func (h *Handle) Put(ctx context.Context, bucket, key string, data []byte, contentType *string) error {
	var opErr error
	if err := h.actor.Do(ctx, func() {
		_, e := h.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: contentType,
		})
		if e != nil {
			opErr = fmt.Errorf("%w: %v", domain.ErrQueryFailed, e)
		}
	}); err != nil {
		return err
	}
	return opErr
}

func (h *Handle) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	var data []byte
	var opErr error
	if err := h.actor.Do(ctx, func() {
		out, e := h.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
		if e != nil {
			opErr = fmt.Errorf("%w: %v", domain.ErrQueryFailed, e)
			return
		}
		defer out.Body.Close()
		data, opErr = io.ReadAll(out.Body)
	}); err != nil {
		return nil, err
	}
	return data, opErr
}

func (h *Handle) Delete(ctx context.Context, bucket, key string) error {
	var opErr error
	if err := h.actor.Do(ctx, func() {
		if _, e := h.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}); e != nil {
			opErr = fmt.Errorf("%w: %v", domain.ErrQueryFailed, e)
		}
	}); err != nil {
		return err
	}
	return opErr
}

func (h *Handle) Exists(ctx context.Context, bucket, key string) (bool, error) {
	var exists bool
	if err := h.actor.Do(ctx, func() {
		_, e := h.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
		exists = e == nil
	}); err != nil {
		return false, err
	}
	return exists, nil
}

func (h *Handle) List(ctx context.Context, bucket string, prefix *string) ([]services.ObjectInfo, error) {
	var infos []services.ObjectInfo
	var opErr error
	if err := h.actor.Do(ctx, func() {
		out, e := h.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{Bucket: aws.String(bucket), Prefix: prefix})
		if e != nil {
			opErr = fmt.Errorf("%w: %v", domain.ErrQueryFailed, e)
			return
		}
		infos = make([]services.ObjectInfo, 0, len(out.Contents))
		for _, obj := range out.Contents {
			info := services.ObjectInfo{Key: aws.ToString(obj.Key)}
			if obj.Size != nil {
				info.Size = *obj.Size
			}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			info.ETag = aws.ToString(obj.ETag)
			infos = append(infos, info)
		}
	}); err != nil {
		return nil, err
	}
	return infos, opErr
}

func (h *Handle) Head(ctx context.Context, bucket, key string) (*services.ObjectInfo, error) {
	var info *services.ObjectInfo
	if err := h.actor.Do(ctx, func() {
		out, e := h.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
		if e != nil {
			return
		}
		info = &services.ObjectInfo{Key: key, ContentType: aws.ToString(out.ContentType), ETag: aws.ToString(out.ETag)}
		if out.ContentLength != nil {
			info.Size = *out.ContentLength
		}
		if out.LastModified != nil {
			info.LastModified = *out.LastModified
		}
		info.Metadata = out.Metadata
	}); err != nil {
		return nil, err
	}
	return info, nil
}

func (h *Handle) Presign(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	var url string
	var opErr error
	if err := h.actor.Do(ctx, func() {
		presigner := s3.NewPresignClient(h.client)
		req, e := presigner.PresignGetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)},
			s3.WithPresignExpires(expiry))
		if e != nil {
			opErr = fmt.Errorf("%w: %v", domain.ErrQueryFailed, e)
			return
		}
		url = req.URL
	}); err != nil {
		return "", err
	}
	return url, opErr
}

func (h *Handle) Health(timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	var healthy bool
	err := h.actor.Do(ctx, func() {
		_, e := h.client.ListBuckets(ctx, &s3.ListBucketsInput{})
		healthy = e == nil
	})
	return err == nil && healthy
}

// Shutdown stops the actor; the S3 client itself holds no connection to
// close, unlike sqldb's *sql.DB or document's mongo.Client.
func (h *Handle) Shutdown() error {
	h.actor.Stop()
	return nil
}
