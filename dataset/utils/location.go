package utils

import (
	"strings"

	"github.com/hibor-causal/make-dataset/dataset/constants"
)

// IsS3Uri returns true when path refers to an S3 location (s3://bucket/key).
func IsS3Uri(path string) bool {
	return strings.HasPrefix(path, constants.S3Scheme)
}

// ParseS3Uri splits an s3://bucket/key uri into its bucket and key.
// The key is empty when the uri only names a bucket.
func ParseS3Uri(str string) (bucket string, key string) {
	workingString := strings.TrimPrefix(str, constants.S3Scheme)
	resultArr := strings.SplitN(workingString, "/", 2)

	if len(resultArr) == 1 {
		return resultArr[0], ""
	}

	return resultArr[0], resultArr[1]
}

// JoinS3Key appends name to prefix as a child object, inserting a slash when needed.
func JoinS3Key(prefix, name string) string {
	if prefix == "" || strings.HasSuffix(prefix, "/") {
		return prefix + name
	}
	return prefix + "/" + name
}
