package datasetaws

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials/stscreds"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

const defaultRegion = "us-east-1"

// Makes these easily mockable for testing
var newSession = session.NewSession

// SessionConfig carries the optional S3 connection settings.
type SessionConfig struct {
	Region string
	// Optional S3 endpoint to use for connection, e.g. a local S3 stand-in.
	Endpoint string
	// Optional role to assume when connecting to S3.
	AssumeRoleArn string
}

// NewSession returns a new AWS session built from cfg.
func NewSession(cfg SessionConfig) (*session.Session, error) {
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	config := aws.Config{
		Region: aws.String(region),
	}

	if cfg.Endpoint != "" {
		config.S3ForcePathStyle = aws.Bool(true)
		config.Endpoint = aws.String(cfg.Endpoint)
	}

	if cfg.AssumeRoleArn != "" {
		base, err := newSession(&aws.Config{Region: aws.String(region)})
		if err != nil {
			return nil, err
		}
		config.Credentials = stscreds.NewCredentials(base, cfg.AssumeRoleArn)
	}

	return newSession(&config)
}

// NewS3Client returns an S3 client backed by a session built from cfg.
func NewS3Client(cfg SessionConfig) (s3iface.S3API, error) {
	sess, err := NewSession(cfg)
	if err != nil {
		return nil, err
	}
	return s3.New(sess), nil
}
