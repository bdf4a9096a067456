package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"
)

// NewRunID returns a fresh identifier for one pipeline run.
func NewRunID() string {
	return uuid.NewString()
}

// S3Archiver stores the JSON response of each run in S3 under
// <prefix>/<date>/<runID>.json.
type S3Archiver struct {
	svc    s3iface.S3API
	bucket string
	prefix string
}

// NewS3Archiver returns nil when no bucket is configured.
func NewS3Archiver(cfg ArchiveConfig) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create AWS session: %w", err)
	}
	return NewS3ArchiverWithClient(s3.New(sess), cfg.Bucket, cfg.Prefix), nil
}

// NewS3ArchiverWithClient wires an existing S3 client.
func NewS3ArchiverWithClient(svc s3iface.S3API, bucket, prefix string) *S3Archiver {
	return &S3Archiver{svc: svc, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// ArchiveKey returns the object key used for a run.
func (a *S3Archiver) ArchiveKey(date, runID string) string {
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}
	return path.Join(a.prefix, date, runID+".json")
}

// ArchiveRun uploads resp and returns the object key. resp.RunID is
// assigned when empty.
func (a *S3Archiver) ArchiveRun(ctx context.Context, resp *DateEvaluationResponse) (string, error) {
	if a == nil {
		return "", nil
	}
	if resp.RunID == "" {
		resp.RunID = NewRunID()
	}

	var buf bytes.Buffer
	if err := WriteJSON(&buf, resp); err != nil {
		return "", err
	}

	key := a.ArchiveKey(resp.Date, resp.RunID)
	_, err := a.svc.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("archive run %s to s3://%s/%s: %w", resp.RunID, a.bucket, key, err)
	}
	infof("archived run %s to s3://%s/%s", resp.RunID, a.bucket, key)
	return key, nil
}
