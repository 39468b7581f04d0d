// Package s3 implements ports.Archive on an S3-compatible bucket (AWS S3 or MinIO).
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/aretw0/witmorph/pkg/domain"
)

// Archive writes each export as one JSON object under Prefix.
type Archive struct {
	client *s3.Client
	bucket string
	prefix string
}

// Config holds explicit construction parameters.
// Credentials come from the default AWS chain.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string // optional; enables a custom endpoint such as MinIO
	Prefix    string
	PathStyle bool
}

// New creates an S3 archive from Config.
func New(ctx context.Context, cfg Config) (*Archive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewFromClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewFromClient creates an archive from an existing client.
func NewFromClient(client *s3.Client, bucket, prefix string) *Archive {
	return &Archive{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (a *Archive) objectKey(key string) (string, error) {
	clean := path.Clean("/" + key)
	if key == "" || clean == "/" || clean != "/"+strings.TrimPrefix(key, "/") {
		return "", fmt.Errorf("invalid archive key %q", key)
	}
	return path.Join(a.prefix, clean[1:]) + ".json", nil
}

// Write uploads the batch. An existing object with the same key is kept.
func (a *Archive) Write(ctx context.Context, key string, batch domain.ExportBatch) (string, error) {
	objKey, err := a.objectKey(key)
	if err != nil {
		return "", err
	}
	// Emulate create-only via Head first.
	_, err = a.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &a.bucket, Key: &objKey})
	if err == nil {
		return "", fmt.Errorf("%w: s3://%s/%s", domain.ErrArchiveEntryExists, a.bucket, objKey)
	}
	if !isNotFound(err) {
		return "", fmt.Errorf("head %s: %w", objKey, err)
	}
	data, err := json.Marshal(batch)
	if err != nil {
		return "", fmt.Errorf("failed to marshal export: %w", err)
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &a.bucket,
		Key:         &objKey,
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"plan-id": batch.PlanID,
			"type":    batch.Type,
		},
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", objKey, err)
	}
	return "s3://" + a.bucket + "/" + objKey, nil
}

// Read implements ports.ArchiveReader.
func (a *Archive) Read(ctx context.Context, key string) (domain.ExportBatch, error) {
	var batch domain.ExportBatch
	objKey, err := a.objectKey(key)
	if err != nil {
		return batch, err
	}
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &a.bucket, Key: &objKey})
	if err != nil {
		if isNotFound(err) {
			return batch, domain.ErrArchiveEntryNotFound
		}
		return batch, fmt.Errorf("get %s: %w", objKey, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return batch, fmt.Errorf("read %s: %w", objKey, err)
	}
	if err := json.Unmarshal(data, &batch); err != nil {
		return batch, fmt.Errorf("failed to unmarshal export: %w", err)
	}
	return batch, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}
