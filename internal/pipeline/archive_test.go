package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	s3iface.S3API
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestNewS3ArchiverDisabledWithoutBucket(t *testing.T) {
	a, err := NewS3Archiver(ArchiveConfig{Region: "ap-northeast-1"})
	require.NoError(t, err)
	assert.Nil(t, a)

	key, err := a.ArchiveRun(context.Background(), &DateEvaluationResponse{})
	require.NoError(t, err)
	assert.Empty(t, key)
}

func TestArchiveRun(t *testing.T) {
	svc := &fakeS3{}
	a := NewS3ArchiverWithClient(svc, "paper-runs", "/runs/")

	resp := &DateEvaluationResponse{Success: true, Date: "2025-01-15", TotalPapers: 3}
	key, err := a.ArchiveRun(context.Background(), resp)
	require.NoError(t, err)

	require.NotEmpty(t, resp.RunID)
	assert.Equal(t, "runs/2025-01-15/"+resp.RunID+".json", key)
	assert.Equal(t, "paper-runs", aws.StringValue(svc.input.Bucket))
	assert.Equal(t, key, aws.StringValue(svc.input.Key))
	assert.Equal(t, "application/json", aws.StringValue(svc.input.ContentType))

	var stored DateEvaluationResponse
	require.NoError(t, json.Unmarshal(svc.body, &stored))
	assert.Equal(t, "2025-01-15", stored.Date)
	assert.Equal(t, resp.RunID, stored.RunID)
}

func TestArchiveRunKeepsRunID(t *testing.T) {
	a := NewS3ArchiverWithClient(&fakeS3{}, "b", "")
	key, err := a.ArchiveRun(context.Background(), &DateEvaluationResponse{Date: "2025-01-15", RunID: "run-1"})
	require.NoError(t, err)
	assert.Equal(t, "2025-01-15/run-1.json", key)
}

func TestArchiveRunError(t *testing.T) {
	a := NewS3ArchiverWithClient(&fakeS3{err: errors.New("AccessDenied")}, "b", "runs")
	_, err := a.ArchiveRun(context.Background(), &DateEvaluationResponse{Date: "2025-01-15", RunID: "run-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3://b/runs/2025-01-15/run-1.json")
}
