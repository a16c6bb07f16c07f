package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourorg/btc-maxpain/internal/logger"
	"github.com/yourorg/btc-maxpain/internal/model"
)

// S3API is the subset of the S3 client used for uploads.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads the JSON, text and parquet forms of each report.
type S3Sink struct {
	client      S3API
	bucket      string
	prefix      string
	compression string
	timeout     time.Duration
	newID       func() string
	log         logrus.FieldLogger
}

// NewS3Sink creates an S3Sink writing under prefix in bucket.
func NewS3Sink(client S3API, bucket, prefix, compression string, log logrus.FieldLogger) *S3Sink {
	return &S3Sink{
		client:      client,
		bucket:      bucket,
		prefix:      strings.Trim(prefix, "/"),
		compression: compression,
		timeout:     2 * time.Minute,
		newID:       uuid.NewString,
		log:         logger.Component(log, "s3"),
	}
}

func (s *S3Sink) Name() string { return "s3" }

type s3Object struct {
	ext         string
	contentType string
	encode      func(*model.Report) ([]byte, error)
}

// Export uploads every form of r. All uploads are attempted; the errors are joined.
func (s *S3Sink) Export(ctx context.Context, r *model.Report) error {
	objects := []s3Object{
		{"json", "application/json", EncodeJSON},
		{"txt", "text/plain; charset=utf-8", func(r *model.Report) ([]byte, error) { return []byte(EncodeText(r)), nil }},
		{"parquet", "application/octet-stream", func(r *model.Report) ([]byte, error) { return EncodeParquet(r, s.compression) }},
	}

	base := s.baseKey(r)
	var errs []error
	for _, obj := range objects {
		data, err := obj.encode(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		key := base + "." + obj.ext
		if err := s.upload(ctx, key, obj.contentType, data); err != nil {
			errs = append(errs, err)
			continue
		}
		s.log.WithFields(logrus.Fields{
			"bucket": s.bucket,
			"key":    key,
			"bytes":  len(data),
		}).Info("Report uploaded")
	}
	return errors.Join(errs...)
}

// baseKey partitions objects by date and makes each run unique.
func (s *S3Sink) baseKey(r *model.Report) string {
	ts := time.Unix(r.Timestamp, 0).UTC()
	filename := fmt.Sprintf("maxpain_%s_%s", ts.Format("20060102150405"), s.newID())
	return path.Join(s.prefix, "date="+ts.Format("2006-01-02"), filename)
}

func (s *S3Sink) upload(ctx context.Context, key, contentType string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"compression": s.compression,
			"generator":   "btc-maxpain",
		},
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}
