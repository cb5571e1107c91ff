package util

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// GetS3Client builds a minio client for an s3+http(s) endpoint URL,
// with credentials taken from the AWS environment variables.
func GetS3Client(u *url.URL) (*minio.Client, error) {
	accessKeyID := os.Getenv("AWS_ACCESS_KEY_ID")
	if accessKeyID == "" {
		return nil, fmt.Errorf("AWS_ACCESS_KEY_ID not set")
	}
	secretAccessKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if secretAccessKey == "" {
		return nil, fmt.Errorf("AWS_SECRET_ACCESS_KEY not set")
	}

	mc, err := minio.New(u.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: u.Scheme == "s3+https",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to s3 host %s: \n%v", u.Host, err)
	}
	return mc, nil
}

// GetS3URL parses an s3+http(s):// destination; any other scheme
// yields nil.
func GetS3URL(path string) *url.URL {
	if !strings.HasPrefix(path, "s3+http://") && !strings.HasPrefix(path, "s3+https://") {
		return nil
	}
	u, err := url.Parse(path)
	if err != nil {
		return nil
	}
	return u
}

// SplitBucketPath breaks an s3 URL path into bucket name and key prefix.
func SplitBucketPath(u *url.URL) (string, string) {
	tmp := strings.SplitN(u.Path, "/", 3)
	bucket := ""
	if len(tmp) > 1 {
		bucket = tmp[1]
	}
	prefix := ""
	if len(tmp) > 2 {
		prefix = tmp[2]
	}
	return bucket, prefix
}
