// Package jobqueue implements the JobQueue component (C7): a Valkey-backed
// FIFO of ingestion jobs plus TTL'd per-job result slots, so that the
// synchronous path can poll a job it submitted asynchronously.
package jobqueue

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/valkey-io/valkey-go"

	"github.com/visioncap/visioncap"
)

const (
	queueKey        = "ingestion:jobs"
	resultKeyPrefix = "ingestion:result:"

	// DefaultResultTTL is how long a terminal result slot survives before
	// expiring.
	DefaultResultTTL = 3600 * time.Second

	// dequeueTimeout bounds a single blocking pop so a worker returns to
	// its supervisor loop often enough to observe shutdown.
	dequeueTimeout = 2 * time.Second
)

// Queue wraps a Valkey client with the job envelope encoding described in
// §9: a JSON header followed by the raw image bytes, rather than
// base64-inflating the image inside the JSON itself.
type Queue struct {
	client valkey.Client
}

// New constructs a Queue over an already-connected Valkey client.
func New(client valkey.Client) *Queue {
	return &Queue{client: client}
}

// jobHeader mirrors visioncap.Job but omits ImageBytes, which is appended
// to the wire envelope separately.
type jobHeader struct {
	JobID            string             `json:"job_id"`
	OwnerID          string             `json:"owner_id"`
	Visibility       visioncap.Visibility `json:"visibility"`
	Priority         visioncap.Priority `json:"priority"`
	TextHint         string             `json:"text_hint,omitempty"`
	ClientConfidence float64            `json:"client_confidence,omitempty"`
	HasClientHint    bool               `json:"has_client_hint"`
	SubmittedAt      time.Time          `json:"submitted_at"`
}

// Enqueue serialises job into a binary envelope and pushes it onto the
// tail of the FIFO.
func (q *Queue) Enqueue(ctx context.Context, job visioncap.Job) error {
	envelope, err := encodeJob(job)
	if err != nil {
		return fmt.Errorf("jobqueue: encode job: %w", err)
	}

	resp := q.client.Do(ctx, q.client.B().Lpush().Key(queueKey).Element(valkey.BinaryString(envelope)).Build())
	return resp.Error()
}

// Dequeue blocks for up to dequeueTimeout waiting for a job. It returns
// (nil, nil) on timeout, which callers should treat as "check shutdown,
// then try again" rather than an error.
func (q *Queue) Dequeue(ctx context.Context) (*visioncap.Job, error) {
	resp := q.client.Do(ctx, q.client.B().Brpop().Key(queueKey).Timeout(dequeueTimeout.Seconds()).Build())
	if err := resp.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("jobqueue: dequeue: %w", err)
	}

	pair, err := resp.AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("jobqueue: decode brpop reply: %w", err)
	}
	if len(pair) != 2 {
		return nil, nil
	}

	job, err := decodeJob([]byte(pair[1]))
	if err != nil {
		return nil, fmt.Errorf("jobqueue: decode job envelope: %w", err)
	}
	return job, nil
}

// SetResult writes the terminal (or in-flight) result slot for jobID with
// ttl, per §3's "<queue-prefix>:result:<job_id>" key shape.
func (q *Queue) SetResult(ctx context.Context, jobID string, result visioncap.JobResult, ttl time.Duration) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("jobqueue: encode result: %w", err)
	}

	resp := q.client.Do(ctx, q.client.B().Set().Key(resultKeyPrefix+jobID).Value(valkey.BinaryString(raw)).Ex(ttl).Build())
	return resp.Error()
}

// GetResult returns (nil, nil) when no slot exists yet for jobID (job
// still queued or in flight with no slot written), per fail-open polling
// semantics.
func (q *Queue) GetResult(ctx context.Context, jobID string) (*visioncap.JobResult, error) {
	resp := q.client.Do(ctx, q.client.B().Get().Key(resultKeyPrefix+jobID).Build())
	if err := resp.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("jobqueue: get result: %w", err)
	}

	raw, err := resp.AsBytes()
	if err != nil {
		return nil, fmt.Errorf("jobqueue: decode result bytes: %w", err)
	}

	var result visioncap.JobResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("jobqueue: decode result json: %w", err)
	}
	return &result, nil
}

// encodeJob writes a 4-byte big-endian header length, the JSON header,
// then the raw image bytes.
func encodeJob(job visioncap.Job) ([]byte, error) {
	header := jobHeader{
		JobID:            job.JobID,
		OwnerID:          job.OwnerID,
		Visibility:       job.Visibility,
		Priority:         job.Priority,
		TextHint:         job.TextHint,
		ClientConfidence: job.ClientConfidence,
		HasClientHint:    job.HasClientHint,
		SubmittedAt:      job.SubmittedAt,
	}

	headerBytes, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}

	envelope := make([]byte, 4+len(headerBytes)+len(job.ImageBytes))
	binary.BigEndian.PutUint32(envelope[:4], uint32(len(headerBytes)))
	copy(envelope[4:], headerBytes)
	copy(envelope[4+len(headerBytes):], job.ImageBytes)
	return envelope, nil
}

func decodeJob(envelope []byte) (*visioncap.Job, error) {
	if len(envelope) < 4 {
		return nil, fmt.Errorf("envelope too short: %d bytes", len(envelope))
	}
	headerLen := binary.BigEndian.Uint32(envelope[:4])
	if int(headerLen)+4 > len(envelope) {
		return nil, fmt.Errorf("envelope header length %d exceeds envelope size %d", headerLen, len(envelope))
	}

	var header jobHeader
	if err := json.Unmarshal(envelope[4:4+headerLen], &header); err != nil {
		return nil, err
	}

	imageBytes := envelope[4+headerLen:]
	return &visioncap.Job{
		JobID:            header.JobID,
		ImageBytes:       imageBytes,
		OwnerID:          header.OwnerID,
		Visibility:       header.Visibility,
		Priority:         header.Priority,
		TextHint:         header.TextHint,
		ClientConfidence: header.ClientConfidence,
		HasClientHint:    header.HasClientHint,
		SubmittedAt:      header.SubmittedAt,
	}, nil
}
