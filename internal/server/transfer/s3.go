package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/dmitrijs2005/r2relay/internal/common"
	"github.com/dmitrijs2005/r2relay/internal/logging"
	"github.com/dmitrijs2005/r2relay/internal/server/models"
)

// Seams for tests.
var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// ObjectStore writes one object to an S3-compatible destination.
type ObjectStore interface {
	PutObject(ctx context.Context, dest models.Destination, body io.ReadSeeker, size int64, contentType string) error
}

// S3Store is the aws-sdk-go-v2 ObjectStore. A client is built per call from
// the destination's credentials; nothing is cached between requests.
type S3Store struct {
	region string
	logger logging.Logger
}

func NewS3Store(region string, l logging.Logger) *S3Store {
	if region == "" {
		region = "auto"
	}
	return &S3Store{region: region, logger: l.With("module", "s3")}
}

func (s *S3Store) client(ctx context.Context, dest models.Destination) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			dest.AccessKeyID,
			dest.SecretAccessKey,
			"",
		)),
		config.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired),
	)
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(dest.Endpoint)
		o.UsePathStyle = true
	}), nil
}

func (s *S3Store) PutObject(ctx context.Context, dest models.Destination, body io.ReadSeeker, size int64, contentType string) error {
	client, err := s.client(ctx, dest)
	if err != nil {
		return fmt.Errorf("%w: configure client: %v", common.ErrObjectStore, err)
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(dest.Bucket),
		Key:           aws.String(dest.ObjectKey),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			s.logger.Error(ctx, "object store rejected put",
				"bucket", dest.Bucket, "key", dest.ObjectKey,
				"code", apiErr.ErrorCode(), "message", apiErr.ErrorMessage())
			return fmt.Errorf("%w: %s: %s", common.ErrObjectStore, apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.logger.Error(ctx, "object store put failed", "bucket", dest.Bucket, "key", dest.ObjectKey, "error", err)
		return fmt.Errorf("%w: %v", common.ErrObjectStore, err)
	}
	return nil
}
