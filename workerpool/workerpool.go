// Package workerpool implements the WorkerPool component (C8): a fixed
// number of goroutines draining the ingestion JobQueue, each running the
// full dequeue-to-result pipeline per job, with a shutdown path that lets
// an in-flight job finish instead of aborting it.
package workerpool

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/visioncap/visioncap"
	"github.com/visioncap/visioncap/executor"
	"github.com/visioncap/visioncap/imaging"
	"github.com/visioncap/visioncap/jobqueue"
	"github.com/visioncap/visioncap/modelhost"
	"github.com/visioncap/visioncap/router"
	"github.com/visioncap/visioncap/store"
	"github.com/visioncap/visioncap/telemetry"
)

// asyncLatencyBudgetMs is the fixed routing budget handed to every async
// job: the async path tolerates more latency than the sync path, so this
// is well above the sync-path default.
const asyncLatencyBudgetMs = 2000

// DefaultConcurrency matches the per-pool-type defaults of §4.8 when no
// explicit count is configured.
const DefaultConcurrency = 4

// Pool runs Concurrency workers, each independent beyond the shared
// queue: there is no intra-pool coordination.
type Pool struct {
	Concurrency int

	queue       *jobqueue.Queue
	router      *router.Router
	executor    *executor.Executor
	embedHost   modelhost.Host
	blobStore   store.BlobStore
	embedStore  store.EmbedStore
	resultTTL   time.Duration
	logger      *zap.SugaredLogger
	rec         *telemetry.Recorder

	wg sync.WaitGroup
}

// New constructs a Pool. concurrency <= 0 falls back to DefaultConcurrency.
func New(
	queue *jobqueue.Queue,
	r *router.Router,
	exec *executor.Executor,
	embedHost modelhost.Host,
	blobStore store.BlobStore,
	embedStore store.EmbedStore,
	concurrency int,
	logger *zap.SugaredLogger,
	rec *telemetry.Recorder,
) *Pool {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Pool{
		Concurrency: concurrency,
		queue:       queue,
		router:      r,
		executor:    exec,
		embedHost:   embedHost,
		blobStore:   blobStore,
		embedStore:  embedStore,
		resultTTL:   jobqueue.DefaultResultTTL,
		logger:      logger,
		rec:         rec,
	}
}

// Start launches Concurrency workers and returns immediately. Each worker
// exits when ctx is cancelled, finishing whatever job it is mid-way
// through first.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.Concurrency; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx, i)
	}
}

// Shutdown blocks until every worker has exited. Callers typically cancel
// the context passed to Start first, then call Shutdown.
func (p *Pool) Shutdown() {
	p.wg.Wait()
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			p.logger.Infow("worker exiting on shutdown", "worker_id", id)
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warnw("dequeue failed, retrying", "worker_id", id, "error", err)
			continue
		}
		if job == nil {
			// Bounded-wait timeout with nothing to do; loop back to the
			// ctx.Done() check so shutdown is observed promptly.
			continue
		}

		// Detached from ctx so a shutdown lets the in-flight job finish.
		p.processJob(context.WithoutCancel(ctx), *job)
	}
}

func (p *Pool) processJob(ctx context.Context, job visioncap.Job) {
	logger := p.logger.With("job_id", job.JobID)

	imageID := imaging.Fingerprint(job.ImageBytes)
	blobMeta, err := p.blobStore.Put(ctx, imageID, job.ImageBytes)
	if err != nil {
		p.failJob(ctx, job.JobID, logger, "blob store write failed", err)
		return
	}

	decision := p.router.Route(ctx, job.ImageBytes, asyncLatencyBudgetMs, job.TextHint, job.ClientConfidence, job.HasClientHint)

	record, err := p.executor.Execute(ctx, decision, job.ImageBytes, job.TextHint, job.ClientConfidence, job.HasClientHint)
	if err != nil {
		p.failJob(ctx, job.JobID, logger, "caption execution failed", err)
		return
	}

	vector, err := p.embedHost.EmbedImage(ctx, job.ImageBytes)
	if err != nil {
		p.failJob(ctx, job.JobID, logger, "embedding failed", err)
		return
	}

	imageRecord := visioncap.ImageRecord{
		ImageID:    imageID,
		Caption:    record.Caption,
		Confidence: record.Confidence,
		Origin:     record.Origin,
		Vector:     vector,
		OwnerID:    job.OwnerID,
		Visibility: job.Visibility,
		Width:      blobMeta.Width,
		Height:     blobMeta.Height,
		SizeBytes:  blobMeta.SizeBytes,
		Format:     blobMeta.Format,
	}

	if err := p.embedStore.Upsert(ctx, imageRecord); err != nil {
		p.failJob(ctx, job.JobID, logger, "embed store upsert failed", err)
		return
	}

	completedAt := time.Now()
	result := visioncap.JobResult{
		Status:      visioncap.JobStatusCompleted,
		ImageID:     imageID,
		Caption:     record.Caption,
		CompletedAt: &completedAt,
	}
	if err := p.queue.SetResult(ctx, job.JobID, result, p.resultTTL); err != nil {
		logger.Warnw("failed to write completed result slot", "error", err)
	}
}

func (p *Pool) failJob(ctx context.Context, jobID string, logger *zap.SugaredLogger, reason string, err error) {
	logger.Errorw(reason, "error", err)
	result := visioncap.JobResult{Status: visioncap.JobStatusFailed, Error: reason}
	if setErr := p.queue.SetResult(ctx, jobID, result, jobqueue.DefaultResultTTL); setErr != nil {
		logger.Warnw("failed to write failed result slot", "error", setErr)
	}
}
