package jobqueue

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	valkeymock "github.com/valkey-io/valkey-go/mock"
	"go.uber.org/mock/gomock"

	"github.com/visioncap/visioncap"
)

func TestEncodeDecodeJobRoundTrips(t *testing.T) {
	job := visioncap.Job{
		JobID:            "job-1",
		ImageBytes:       []byte{0x01, 0x02, 0x03, 0xff},
		OwnerID:          "owner-1",
		Visibility:       visioncap.VisibilityPrivate,
		Priority:         visioncap.PriorityNormal,
		TextHint:         "a red shoe",
		ClientConfidence: 0.9,
		HasClientHint:    true,
		SubmittedAt:      time.Unix(1700000000, 0).UTC(),
	}

	envelope, err := encodeJob(job)
	assert.NoError(t, err)

	decoded, err := decodeJob(envelope)
	assert.NoError(t, err)
	assert.Equal(t, job.JobID, decoded.JobID)
	assert.Equal(t, job.ImageBytes, decoded.ImageBytes)
	assert.Equal(t, job.OwnerID, decoded.OwnerID)
	assert.Equal(t, job.Visibility, decoded.Visibility)
	assert.Equal(t, job.TextHint, decoded.TextHint)
	assert.Equal(t, job.ClientConfidence, decoded.ClientConfidence)
	assert.True(t, decoded.SubmittedAt.Equal(job.SubmittedAt))
}

func TestDecodeJobRejectsTruncatedEnvelope(t *testing.T) {
	_, err := decodeJob([]byte{0x00, 0x00})
	assert.Error(t, err)

	_, err = decodeJob([]byte{0x00, 0x00, 0x00, 0xff})
	assert.Error(t, err)
}

func TestEnqueue(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := valkeymock.NewClient(ctrl)
	q := New(mockClient)
	ctx := context.Background()

	job := visioncap.Job{JobID: "job-1", ImageBytes: []byte("bytes"), SubmittedAt: time.Unix(1700000000, 0).UTC()}

	mockClient.EXPECT().
		Do(ctx, valkeymock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "LPUSH" && cmd[1] == queueKey
		}, "LPUSH onto the jobs queue")).
		Return(valkeymock.Result(valkeymock.ValkeyInt64(1)))

	err := q.Enqueue(ctx, job)
	assert.NoError(t, err)
}

func TestDequeueTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := valkeymock.NewClient(ctrl)
	q := New(mockClient)
	ctx := context.Background()

	mockClient.EXPECT().
		Do(ctx, valkeymock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "BRPOP" && cmd[1] == queueKey
		}, "BRPOP with bounded timeout")).
		Return(valkeymock.Result(valkeymock.ValkeyNil()))

	job, err := q.Dequeue(ctx)
	assert.NoError(t, err)
	assert.Nil(t, job)
}

func TestDequeueDecodesEnvelope(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := valkeymock.NewClient(ctrl)
	q := New(mockClient)
	ctx := context.Background()

	job := visioncap.Job{JobID: "job-2", ImageBytes: []byte("img-bytes"), SubmittedAt: time.Unix(1700000000, 0).UTC()}
	envelope, err := encodeJob(job)
	assert.NoError(t, err)

	mockClient.EXPECT().
		Do(ctx, gomock.Any()).
		Return(valkeymock.Result(valkeymock.ValkeyArray(
			valkeymock.ValkeyString(queueKey),
			valkeymock.ValkeyString(string(envelope)),
		)))

	decoded, err := q.Dequeue(ctx)
	assert.NoError(t, err)
	if assert.NotNil(t, decoded) {
		assert.Equal(t, "job-2", decoded.JobID)
		assert.Equal(t, []byte("img-bytes"), decoded.ImageBytes)
	}
}

func TestSetAndGetResult(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := valkeymock.NewClient(ctrl)
	q := New(mockClient)
	ctx := context.Background()

	result := visioncap.JobResult{Status: visioncap.JobStatusCompleted, ImageID: "img-1", Caption: "a dog"}

	mockClient.EXPECT().
		Do(ctx, valkeymock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SET" && cmd[1] == resultKeyPrefix+"job-1"
		}, "SET result slot with TTL")).
		Return(valkeymock.Result(valkeymock.ValkeyString("OK")))

	err := q.SetResult(ctx, "job-1", result, time.Hour)
	assert.NoError(t, err)

	raw, err := marshalForTest(result)
	assert.NoError(t, err)

	mockClient.EXPECT().
		Do(ctx, valkeymock.Match("GET", resultKeyPrefix+"job-1")).
		Return(valkeymock.Result(valkeymock.ValkeyBlobString(string(raw))))

	got, err := q.GetResult(ctx, "job-1")
	assert.NoError(t, err)
	if assert.NotNil(t, got) {
		assert.Equal(t, result.Status, got.Status)
		assert.Equal(t, result.ImageID, got.ImageID)
		assert.Equal(t, result.Caption, got.Caption)
	}
}

func TestGetResultMissing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := valkeymock.NewClient(ctrl)
	q := New(mockClient)
	ctx := context.Background()

	mockClient.EXPECT().
		Do(ctx, valkeymock.Match("GET", resultKeyPrefix+"missing")).
		Return(valkeymock.Result(valkeymock.ValkeyNil()))

	got, err := q.GetResult(ctx, "missing")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func marshalForTest(result visioncap.JobResult) ([]byte, error) {
	return json.Marshal(result)
}
