package workerpool

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	valkeymock "github.com/valkey-io/valkey-go/mock"
	"go.uber.org/mock/gomock"

	"github.com/visioncap/visioncap"
	"github.com/visioncap/visioncap/breaker"
	"github.com/visioncap/visioncap/executor"
	"github.com/visioncap/visioncap/imaging"
	"github.com/visioncap/visioncap/jobqueue"
	"github.com/visioncap/visioncap/modelhost"
	"github.com/visioncap/visioncap/ratelimit"
	"github.com/visioncap/visioncap/router"
	"github.com/visioncap/visioncap/semcache"
	"github.com/visioncap/visioncap/state"
	"github.com/visioncap/visioncap/store"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	assert.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestPool(t *testing.T, mockQueueClient *valkeymock.Client, embedHost modelhost.Host) (*Pool, func()) {
	backing, cleanup := state.NewMemoryManager(1024 * 1024)
	cache := semcache.New(backing, semcache.DefaultTTL, nil)
	r := router.New(cache, nil, nil)

	limiter := ratelimit.New(ratelimit.DefaultLimits())
	cb := breaker.New(breaker.DefaultConfig(), nil)
	exec := executor.New(modelhost.NewMock(), modelhost.NewMock(), limiter, cb, cache, nil, nil)

	q := jobqueue.New(mockQueueClient)
	blobStore := store.NewMemoryBlobStore()
	embedStore := store.NewMemoryEmbedStore()

	pool := New(q, r, exec, embedHost, blobStore, embedStore, 1, nil, nil)
	return pool, cleanup
}

func TestProcessJobSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := valkeymock.NewClient(ctrl)
	embedHost := modelhost.NewMock()
	pool, cleanup := newTestPool(t, mockClient, embedHost)
	defer cleanup()

	mockClient.EXPECT().
		Do(gomock.Any(), valkeymock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SET"
		}, "SET result slot")).
		Return(valkeymock.Result(valkeymock.ValkeyString("OK")))

	job := visioncap.Job{JobID: "job-1", ImageBytes: testPNG(t), OwnerID: "owner-1", Visibility: visioncap.VisibilityPrivate}
	pool.processJob(context.Background(), job)

	imageID := imaging.Fingerprint(job.ImageBytes)
	record, err := pool.embedStore.Get(context.Background(), imageID)
	assert.NoError(t, err)
	assert.NotNil(t, record)
}

func TestProcessJobEmbedFailureWritesFailedResult(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := valkeymock.NewClient(ctrl)
	pool, cleanup := newTestPool(t, mockClient, modelhost.NewMock())
	defer cleanup()

	// force EmbedImage to fail by wrapping a Mock whose embed errors; Mock
	// has no embed-specific error field, so swap in one that always errors.
	pool.embedHost = failingEmbedHost{}

	mockClient.EXPECT().
		Do(gomock.Any(), valkeymock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SET"
		}, "SET failed result slot")).
		Return(valkeymock.Result(valkeymock.ValkeyString("OK")))

	job := visioncap.Job{JobID: "job-2", ImageBytes: testPNG(t)}
	pool.processJob(context.Background(), job)
}

type failingEmbedHost struct{}

func (failingEmbedHost) CaptionLocal(ctx context.Context, imageBytes []byte) (modelhost.CaptionOutcome, error) {
	return modelhost.CaptionOutcome{}, assert.AnError
}
func (failingEmbedHost) CaptionCloud(ctx context.Context, imageBytes []byte) (modelhost.CaptionOutcome, error) {
	return modelhost.CaptionOutcome{}, assert.AnError
}
func (failingEmbedHost) EmbedImage(ctx context.Context, imageBytes []byte) ([]float32, error) {
	return nil, assert.AnError
}
func (failingEmbedHost) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return nil, assert.AnError
}
func (failingEmbedHost) ModelName() string { return "failing" }
