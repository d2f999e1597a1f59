package raw

import (
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
	ers "github.com/hibor-causal/make-dataset/dataset/errors"
	"github.com/hibor-causal/make-dataset/dataset/utils"
)

// Source is where the raw extracts are read from. There are two implementations;
// one for a local directory, and one for an S3 prefix.
type Source interface {
	// Exists returns an *ers.InputNotFoundError when the location cannot be found.
	Exists(ctx context.Context) error
	// Open returns the contents of the named extract. Caller must close it.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Location returns the input path the source was created from.
	Location() string
}

// NewSource picks the Source implementation matching location.
func NewSource(location string, cfg conf.Config, logger logrus.FieldLogger) (Source, error) {
	if !utils.IsS3Uri(location) {
		return &LocalSource{Dir: location}, nil
	}

	client, err := datasetaws.NewS3Client(datasetaws.SessionConfig{
		Region:        cfg.AWSRegion,
		Endpoint:      cfg.S3Endpoint,
		AssumeRoleArn: cfg.S3AssumeRoleArn,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create S3 session")
	}

	bucket, prefix := utils.ParseS3Uri(location)
	return &S3Source{Client: client, Bucket: bucket, Prefix: prefix, Logger: logger}, nil
}

type LocalSource struct {
	Dir string
}

func (s *LocalSource) Exists(ctx context.Context) error {
	if _, err := os.Stat(filepath.Clean(s.Dir)); err != nil {
		return &ers.InputNotFoundError{Path: s.Dir, Err: err}
	}
	return nil
}

func (s *LocalSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return os.Open(filepath.Clean(filepath.Join(s.Dir, name)))
}

func (s *LocalSource) Location() string {
	return s.Dir
}

type S3Source struct {
	Client s3iface.S3API
	Bucket string
	Prefix string
	Logger logrus.FieldLogger
}

func (s *S3Source) Exists(ctx context.Context) error {
	prefix := utils.JoinS3Key(s.Prefix, "")
	resp, err := s.Client.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.Bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int64(1),
	})
	if err != nil {
		return &ers.InputNotFoundError{Path: s.Location(), Err: err}
	}
	if len(resp.Contents) == 0 {
		return &ers.InputNotFoundError{Path: s.Location(), Err: errors.New("no objects under prefix")}
	}
	return nil
}

func (s *S3Source) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key := utils.JoinS3Key(s.Prefix, name)
	s.Logger.Infof("Downloading bucket %s, key %s", s.Bucket, key)

	out, err := s.Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to download bucket %s, key %s", s.Bucket, key)
	}
	return out.Body, nil
}

func (s *S3Source) Location() string {
	return "s3://" + s.Bucket + "/" + s.Prefix
}
