package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// SpacesStore implements ObjectStore on DigitalOcean Spaces (or any S3 API)
// through aws-sdk-go.
type SpacesStore struct {
	s3Client *s3.S3
	uploader *s3manager.Uploader
	bucket   string
}

type SpacesConfig struct {
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Endpoint  string
	// PathStyle addresses the bucket as a path segment instead of a subdomain
	PathStyle bool
}

func NewSpacesStore(config SpacesConfig) (*SpacesStore, error) {
	if config.Bucket == "" {
		return nil, fmt.Errorf("spaces bucket is not configured")
	}

	sess, err := session.NewSession(&aws.Config{
		Credentials: credentials.NewStaticCredentials(
			config.AccessKey,
			config.SecretKey,
			"",
		),
		Endpoint:         aws.String(config.Endpoint),
		Region:           aws.String(config.Region),
		S3ForcePathStyle: aws.Bool(config.PathStyle),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Spaces session: %w", err)
	}

	client := s3.New(sess)
	return &SpacesStore{
		s3Client: client,
		uploader: s3manager.NewUploaderWithClient(client),
		bucket:   config.Bucket,
	}, nil
}

func (s *SpacesStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, metadata map[string]string) error {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ACL:         aws.String("private"),
		ContentType: aws.String(contentType),
		Metadata:    aws.StringMap(metadata),
	})
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	return nil
}

func (s *SpacesStore) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	out, err := s.s3Client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return &ObjectInfo{
		Key:          key,
		Size:         aws.Int64Value(out.ContentLength),
		ContentType:  aws.StringValue(out.ContentType),
		Metadata:     aws.StringValueMap(out.Metadata),
		LastModified: aws.TimeValue(out.LastModified),
	}, nil
}

func (s *SpacesStore) Delete(ctx context.Context, key string) error {
	_, err := s.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (s *SpacesStore) PresignGet(ctx context.Context, key string, expiry time.Duration, disposition string) (string, error) {
	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket:                     aws.String(s.bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(disposition),
	})
	req.SetContext(ctx)

	url, err := req.Presign(expiry)
	if err != nil {
		return "", fmt.Errorf("failed to presign URL: %w", err)
	}
	return url, nil
}

func isS3NotFound(err error) bool {
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
		return true
	}
	var awsErr awserr.Error
	if errors.As(err, &awsErr) {
		switch awsErr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}
