package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/visioncap/visioncap"
	"github.com/visioncap/visioncap/apierr"
	"github.com/visioncap/visioncap/imaging"
)

// ingestResponse is the body returned by POST /images on success.
type ingestResponse struct {
	ID           string  `json:"id"`
	Caption      string  `json:"caption"`
	Origin       string  `json:"origin"`
	Confidence   float64 `json:"confidence"`
	DownloadURL  string  `json:"download_url"`
	ThumbnailURL string  `json:"thumbnail_url"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	SizeBytes    int64   `json:"size_bytes"`
	Format       string  `json:"format"`
}

// HandleIngestSync implements POST /images: the synchronous captioning
// path. It runs the full router→executor→embed→persist pipeline inline and
// returns the resulting record.
func (s *Server) HandleIngestSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID, hasCaller, _ := callerIdentity(ctx)
	if !hasCaller {
		apierr.Write(w, apierr.Unauthenticated("authentication required"))
		return
	}

	imageBytes, visibility, err := parseUploadForm(r)
	if err != nil {
		apierr.Write(w, visibilityOrBadRequest(err))
		return
	}
	if visibility == visioncap.VisibilityPublicAdmin {
		_, _, isAdmin := callerIdentity(ctx)
		if !isAdmin {
			apierr.Write(w, apierr.Forbidden("public_admin visibility requires admin"))
			return
		}
	}

	hint, confidence, hasConfidence := clientHints(r)

	decision := s.router.Route(ctx, imageBytes, s.latencyBudgetMs, hint, confidence, hasConfidence)
	record, err := s.executor.Execute(ctx, decision, imageBytes, hint, confidence, hasConfidence)
	if err != nil {
		apierr.Write(w, apierr.Internal("captioning unavailable"))
		return
	}

	imageID := imaging.Fingerprint(imageBytes)
	meta, err := s.blobStore.Put(ctx, imageID, imageBytes)
	if err != nil {
		s.logger.Errorw("blob store put failed", "error", err, "image_id", imageID)
		apierr.Write(w, apierr.Internal("failed to persist image"))
		return
	}

	vector, err := s.embedHost.EmbedImage(ctx, imageBytes)
	if err != nil {
		s.logger.Errorw("embed image failed", "error", err, "image_id", imageID)
		apierr.Write(w, apierr.Internal("failed to embed image"))
		return
	}

	if err := s.embedStore.Upsert(ctx, visioncap.ImageRecord{
		ImageID:    imageID,
		Caption:    record.Caption,
		Confidence: record.Confidence,
		Origin:     record.Origin,
		Vector:     vector,
		OwnerID:    callerID,
		Visibility: visibility,
		Width:      meta.Width,
		Height:     meta.Height,
		SizeBytes:  meta.SizeBytes,
		Format:     meta.Format,
		CreatedAt:  time.Now(),
	}); err != nil {
		s.logger.Errorw("embed store upsert failed", "error", err, "image_id", imageID)
		apierr.Write(w, apierr.Internal("failed to persist embedding"))
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		ID:           imageID,
		Caption:      record.Caption,
		Origin:       string(record.Origin),
		Confidence:   record.Confidence,
		DownloadURL:  "/images/" + imageID + "/download",
		ThumbnailURL: "/images/" + imageID + "/thumbnail",
		Width:        meta.Width,
		Height:       meta.Height,
		SizeBytes:    meta.SizeBytes,
		Format:       meta.Format,
	})
}

type asyncIngestResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	PollURL string `json:"poll_url"`
}

// HandleIngestAsync implements POST /images/async: the job is enqueued and
// a worker pool (run out-of-process) picks it up.
func (s *Server) HandleIngestAsync(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		apierr.Write(w, apierr.Internal("async ingestion is not configured"))
		return
	}

	ctx := r.Context()
	callerID, hasCaller, isAdmin := callerIdentity(ctx)
	if !hasCaller {
		apierr.Write(w, apierr.Unauthenticated("authentication required"))
		return
	}

	imageBytes, visibility, err := parseUploadForm(r)
	if err != nil {
		apierr.Write(w, visibilityOrBadRequest(err))
		return
	}
	if visibility == visioncap.VisibilityPublicAdmin && !isAdmin {
		apierr.Write(w, apierr.Forbidden("public_admin visibility requires admin"))
		return
	}

	priority := visioncap.PriorityNormal
	if p := r.URL.Query().Get("priority"); p != "" {
		switch visioncap.Priority(p) {
		case visioncap.PriorityLow, visioncap.PriorityNormal, visioncap.PriorityHigh:
			priority = visioncap.Priority(p)
		default:
			apierr.Write(w, apierr.BadRequest("invalid priority"))
			return
		}
	}

	hint, confidence, hasConfidence := clientHints(r)
	jobID := newUUID()
	job := visioncap.Job{
		JobID:            jobID,
		ImageBytes:       imageBytes,
		OwnerID:          callerID,
		Visibility:       visibility,
		Priority:         priority,
		TextHint:         hint,
		ClientConfidence: confidence,
		HasClientHint:    hasConfidence,
		SubmittedAt:      time.Now(),
	}

	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.logger.Errorw("enqueue job failed", "error", err, "job_id", jobID)
		apierr.Write(w, apierr.Internal("failed to enqueue job"))
		return
	}

	writeJSON(w, http.StatusOK, asyncIngestResponse{
		JobID:   jobID,
		Status:  string(visioncap.JobStatusQueued),
		PollURL: "/jobs/" + jobID,
	})
}

type jobStatusResponse struct {
	JobID  string              `json:"job_id"`
	Status string              `json:"status"`
	Result *jobStatusResultBody `json:"result,omitempty"`
}

type jobStatusResultBody struct {
	ImageID string `json:"image_id,omitempty"`
	Caption string `json:"caption,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HandleJobStatus implements GET /jobs/{job_id}.
func (s *Server) HandleJobStatus(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		apierr.Write(w, apierr.Internal("async ingestion is not configured"))
		return
	}

	jobID := r.PathValue("job_id")
	result, err := s.queue.GetResult(r.Context(), jobID)
	if err != nil {
		s.logger.Errorw("get job result failed", "error", err, "job_id", jobID)
		apierr.Write(w, apierr.Internal("failed to read job status"))
		return
	}
	if result == nil {
		writeJSON(w, http.StatusOK, jobStatusResponse{
			JobID:  jobID,
			Status: string(visioncap.JobStatusProcessing),
		})
		return
	}

	resp := jobStatusResponse{JobID: jobID, Status: string(result.Status)}
	if result.ImageID != "" || result.Caption != "" || result.Error != "" {
		resp.Result = &jobStatusResultBody{
			ImageID: result.ImageID,
			Caption: result.Caption,
			Error:   result.Error,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func visibilityOrBadRequest(err error) *apierr.E {
	if errors.Is(err, errInvalidVisibility) {
		return apierr.BadRequest("invalid visibility")
	}
	return apierr.BadRequest(err.Error())
}
