// Package remote fetches workbooks that live outside the local filesystem.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/campusinsight/sheetsql"
	"github.com/campusinsight/sheetsql/domain/model"
)

// GetObjectAPI is the part of the S3 client a source needs.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config locates a workbook object.
type S3Config struct {
	Bucket  string
	Key     string
	Region  string
	Profile string
}

// NewS3Client builds a client from the default AWS credential chain.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg), nil
}

// S3Source downloads a workbook object and parses it in memory.
// Objects whose key has no recognized extension are read as XLSX.
type S3Source struct {
	client GetObjectAPI
	bucket string
	key    string
	logger *slog.Logger
}

// NewS3Source returns a source for s3://bucket/key.
func NewS3Source(client GetObjectAPI, bucket, key string, logger *slog.Logger) *S3Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &S3Source{client: client, bucket: bucket, key: key, logger: logger}
}

// Describe returns the object URL.
func (s *S3Source) Describe() string {
	return "s3://" + s.bucket + "/" + s.key
}

// Open downloads the object and reads it as a workbook.
func (s *S3Source) Open(ctx context.Context) (model.Workbook, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return model.Workbook{}, fmt.Errorf("%w: %s not found: %w", sheetsql.ErrSourceUnavailable, s.Describe(), err)
		}
		return model.Workbook{}, fmt.Errorf("%w: get %s: %w", sheetsql.ErrSourceUnavailable, s.Describe(), err)
	}
	defer func() {
		_ = out.Body.Close()
	}()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return model.Workbook{}, fmt.Errorf("%w: read %s: %w", sheetsql.ErrSourceUnavailable, s.Describe(), err)
	}
	s.logger.Debug("downloaded workbook",
		slog.String("source", s.Describe()),
		slog.Int("bytes", len(data)),
	)

	payload := &sheetsql.BytesSource{Name: path.Base(s.key), Data: data}
	if !sheetsql.IsSupportedFile(payload.Name) {
		payload.Type = sheetsql.FileTypeXLSX
	}
	return payload.Open(ctx)
}
