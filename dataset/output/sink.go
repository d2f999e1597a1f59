package output

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hibor-causal/make-dataset/conf"
	datasetaws "github.com/hibor-causal/make-dataset/dataset/aws"
	"github.com/hibor-causal/make-dataset/dataset/utils"
)

// Sink is where the output tables are written to.
type Sink interface {
	// Create opens path for writing. The file is complete once the writer is closed.
	Create(ctx context.Context, path string) (io.WriteCloser, error)
}

// NewSink picks the Sink implementation matching the output prefix.
func NewSink(prefix string, cfg conf.Config, logger logrus.FieldLogger) (Sink, error) {
	if !utils.IsS3Uri(prefix) {
		return &LocalSink{}, nil
	}

	client, err := datasetaws.NewS3Client(datasetaws.SessionConfig{
		Region:        cfg.AWSRegion,
		Endpoint:      cfg.S3Endpoint,
		AssumeRoleArn: cfg.S3AssumeRoleArn,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create S3 session")
	}
	return &S3Sink{Client: client, Logger: logger}, nil
}

// LocalSink writes to the local file system. Parent directories are not created.
type LocalSink struct{}

func (s *LocalSink) Create(ctx context.Context, path string) (io.WriteCloser, error) {
	return os.Create(filepath.Clean(path))
}

// S3Sink uploads each file once its writer is closed. Paths are s3:// URIs.
type S3Sink struct {
	Client s3iface.S3API
	Logger logrus.FieldLogger
}

func (s *S3Sink) Create(ctx context.Context, path string) (io.WriteCloser, error) {
	if !utils.IsS3Uri(path) {
		return nil, errors.Errorf("%s is not an S3 location", path)
	}
	bucket, key := utils.ParseS3Uri(path)
	return &s3Object{ctx: ctx, sink: s, bucket: bucket, key: key}, nil
}

type s3Object struct {
	bytes.Buffer
	ctx    context.Context
	sink   *S3Sink
	bucket string
	key    string
}

func (o *s3Object) Close() error {
	o.sink.Logger.Infof("Uploading %d bytes to bucket %s, key %s", o.Len(), o.bucket, o.key)
	_, err := o.sink.Client.PutObjectWithContext(o.ctx, &s3.PutObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key),
		Body:   bytes.NewReader(o.Bytes()),
	})
	if err != nil {
		return errors.Wrapf(err, "failed to upload bucket %s, key %s", o.bucket, o.key)
	}
	return nil
}
