package export

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amm-curve-lab/internal/config"
)

type fakeS3 struct {
	puts   []*s3.PutObjectInput
	bodies []string
	failOn int // 1-based put number to fail, 0 never
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, in)
	if f.failOn == len(f.puts) {
		return nil, errors.New("access denied")
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.bodies = append(f.bodies, string(body))
	return &s3.PutObjectOutput{}, nil
}

func newTestUploader(client *fakeS3) *S3Uploader {
	u := NewS3UploaderWithClient(client, "lab-reports", "/backtests/")
	u.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	u.newID = func() string { return "batch-1" }
	return u
}

func TestS3Uploader_Upload(t *testing.T) {
	client := &fakeS3{}
	u := newTestUploader(client)

	keys, err := u.Upload(context.Background(), []File{
		{Name: "report.md", ContentType: "text/markdown", Body: []byte("# report")},
		{Name: "runs.csv", Body: []byte("run_id\n")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"backtests/date=2024-03-01/batch-1/report.md",
		"backtests/date=2024-03-01/batch-1/runs.csv",
	}, keys)

	require.Len(t, client.puts, 2)
	assert.Equal(t, "lab-reports", aws.ToString(client.puts[0].Bucket))
	assert.Equal(t, "text/markdown", aws.ToString(client.puts[0].ContentType))
	assert.Equal(t, "application/octet-stream", aws.ToString(client.puts[1].ContentType))
	assert.Equal(t, []string{"# report", "run_id\n"}, client.bodies)
}

func TestS3Uploader_StopsOnFailure(t *testing.T) {
	client := &fakeS3{failOn: 1}
	u := newTestUploader(client)

	keys, err := u.Upload(context.Background(), []File{{Name: "a"}, {Name: "b"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
	assert.Empty(t, keys)
	assert.Len(t, client.puts, 1)
}

func TestS3Uploader_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &fakeS3{}
	_, err := newTestUploader(client).Upload(ctx, []File{{Name: "a"}})
	require.Error(t, err)
	assert.Empty(t, client.puts)
}

func TestNewS3Uploader_RequiresBucket(t *testing.T) {
	_, err := NewS3Uploader(context.Background(), config.S3Config{})
	assert.Error(t, err)
}
