package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/visioncap/visioncap"
	"github.com/visioncap/visioncap/apierr"
	"github.com/visioncap/visioncap/tenancy"
)

type imageListItem struct {
	ID         string  `json:"id"`
	Caption    string  `json:"caption"`
	Visibility string  `json:"visibility"`
	Confidence float64 `json:"confidence"`
	CreatedAt  string  `json:"created_at"`
}

const defaultListLimit = 20

// HandleListImages implements GET /images?scope=public|mine|all&limit=&offset=.
func (s *Server) HandleListImages(w http.ResponseWriter, r *http.Request) {
	callerID, hasCaller, _ := callerIdentity(r.Context())

	scope := visioncap.ScopePublic
	if raw := r.URL.Query().Get("scope"); raw != "" {
		scope = visioncap.Scope(raw)
	}
	if err := tenancy.CheckScope(scope, hasCaller); err != nil {
		apierr.Write(w, apierr.Unauthenticated(err.Error()))
		return
	}

	limit := queryInt(r, "limit", defaultListLimit)
	offset := queryInt(r, "offset", 0)

	records, err := s.embedStore.List(r.Context(), scope, callerID, hasCaller, limit, offset)
	if err != nil {
		s.logger.Errorw("list images failed", "error", err)
		apierr.Write(w, apierr.Internal("failed to list images"))
		return
	}

	items := make([]imageListItem, 0, len(records))
	for _, record := range records {
		items = append(items, imageListItem{
			ID:         record.ImageID,
			Caption:    record.Caption,
			Visibility: string(record.Visibility),
			Confidence: record.Confidence,
			CreatedAt:  record.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

type imageDetail struct {
	ID           string  `json:"id"`
	Caption      string  `json:"caption"`
	Visibility   string  `json:"visibility"`
	Confidence   float64 `json:"confidence"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	SizeBytes    int64   `json:"size_bytes"`
	Format       string  `json:"format"`
	DownloadURL  string  `json:"download_url"`
	ThumbnailURL string  `json:"thumbnail_url"`
}

// HandleGetImage implements GET /images/{id}.
func (s *Server) HandleGetImage(w http.ResponseWriter, r *http.Request) {
	callerID, hasCaller, _ := callerIdentity(r.Context())
	imageID := r.PathValue("id")

	record, err := s.fetchViewable(r, imageID, callerID, hasCaller)
	if err != nil {
		apierr.Write(w, err.(*apierr.E))
		return
	}

	writeJSON(w, http.StatusOK, imageDetail{
		ID:           record.ImageID,
		Caption:      record.Caption,
		Visibility:   string(record.Visibility),
		Confidence:   record.Confidence,
		Width:        record.Width,
		Height:       record.Height,
		SizeBytes:    record.SizeBytes,
		Format:       record.Format,
		DownloadURL:  "/images/" + record.ImageID + "/download",
		ThumbnailURL: "/images/" + record.ImageID + "/thumbnail",
	})
}

// HandleDownload implements GET /images/{id}/download and, since no actual
// thumbnail rendering is in scope, also backs GET /images/{id}/thumbnail:
// both read the same BlobStore key (the image ID) and serve the same
// original bytes.
func (s *Server) HandleDownload(w http.ResponseWriter, r *http.Request) {
	callerID, hasCaller, _ := callerIdentity(r.Context())
	imageID := r.PathValue("id")

	record, err := s.fetchViewable(r, imageID, callerID, hasCaller)
	if err != nil {
		apierr.Write(w, err.(*apierr.E))
		return
	}

	imageBytes, err := s.blobStore.Get(r.Context(), record.ImageID)
	if err != nil {
		s.logger.Errorw("blob store get failed", "error", err, "image_id", record.ImageID)
		apierr.Write(w, apierr.Internal("failed to read image bytes"))
		return
	}

	contentType := "application/octet-stream"
	switch record.Format {
	case "jpeg", "jpg":
		contentType = "image/jpeg"
	case "png":
		contentType = "image/png"
	case "gif":
		contentType = "image/gif"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(imageBytes)
}

// fetchViewable loads imageID and applies the §4.10 CanView check, folding
// "not found", "soft deleted" and "not visible to this caller" into one
// 404 per the original's uniform deleted_at/visibility filtering.
func (s *Server) fetchViewable(r *http.Request, imageID, callerID string, hasCaller bool) (*visioncap.ImageRecord, error) {
	record, err := s.embedStore.Get(r.Context(), imageID)
	if err != nil {
		s.logger.Errorw("get image failed", "error", err, "image_id", imageID)
		return nil, apierr.Internal("failed to load image")
	}
	if record == nil || !tenancy.CanView(*record, callerID, hasCaller) {
		return nil, apierr.NotFound("image not found")
	}
	return record, nil
}

type patchImageRequest struct {
	Visibility string `json:"visibility"`
}

// HandlePatchImage implements PATCH /images/{id}.
func (s *Server) HandlePatchImage(w http.ResponseWriter, r *http.Request) {
	callerID, hasCaller, isAdmin := callerIdentity(r.Context())
	imageID := r.PathValue("id")

	record, err := s.embedStore.Get(r.Context(), imageID)
	if err != nil {
		s.logger.Errorw("get image failed", "error", err, "image_id", imageID)
		apierr.Write(w, apierr.Internal("failed to load image"))
		return
	}
	if record == nil || record.DeletedAt != nil {
		apierr.Write(w, apierr.NotFound("image not found"))
		return
	}
	if err := tenancy.CanMutate(*record, callerID, hasCaller, isAdmin); err != nil {
		apierr.Write(w, mutateErrToAPI(err))
		return
	}

	var body patchImageRequest
	if err := decodeJSON(r, &body); err != nil {
		apierr.Write(w, apierr.BadRequest("invalid request body"))
		return
	}
	visibility, ok := parseVisibility(body.Visibility)
	if !ok {
		apierr.Write(w, apierr.BadRequest("invalid visibility"))
		return
	}
	if visibility == visioncap.VisibilityPublicAdmin && !isAdmin {
		apierr.Write(w, apierr.Forbidden("public_admin visibility requires admin"))
		return
	}

	record.Visibility = visibility
	if err := s.embedStore.Upsert(r.Context(), *record); err != nil {
		s.logger.Errorw("upsert during patch failed", "error", err, "image_id", imageID)
		apierr.Write(w, apierr.Internal("failed to update image"))
		return
	}

	writeJSON(w, http.StatusOK, imageDetail{
		ID:         record.ImageID,
		Caption:    record.Caption,
		Visibility: string(record.Visibility),
		Confidence: record.Confidence,
		Width:      record.Width,
		Height:     record.Height,
		SizeBytes:  record.SizeBytes,
		Format:     record.Format,
	})
}

// HandleDeleteImage implements DELETE /images/{id} (soft delete).
func (s *Server) HandleDeleteImage(w http.ResponseWriter, r *http.Request) {
	callerID, hasCaller, isAdmin := callerIdentity(r.Context())
	imageID := r.PathValue("id")

	record, err := s.embedStore.Get(r.Context(), imageID)
	if err != nil {
		s.logger.Errorw("get image failed", "error", err, "image_id", imageID)
		apierr.Write(w, apierr.Internal("failed to load image"))
		return
	}
	if record == nil || record.DeletedAt != nil {
		apierr.Write(w, apierr.NotFound("image not found"))
		return
	}
	if err := tenancy.CanMutate(*record, callerID, hasCaller, isAdmin); err != nil {
		apierr.Write(w, mutateErrToAPI(err))
		return
	}

	if err := s.embedStore.SoftDelete(r.Context(), imageID, time.Now()); err != nil {
		s.logger.Errorw("soft delete failed", "error", err, "image_id", imageID)
		apierr.Write(w, apierr.Internal("failed to delete image"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func mutateErrToAPI(err error) *apierr.E {
	if errors.Is(err, tenancy.ErrUnauthenticated) {
		return apierr.Unauthenticated(err.Error())
	}
	if errors.Is(err, tenancy.ErrForbidden) {
		return apierr.Forbidden(err.Error())
	}
	return apierr.Internal(err.Error())
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return defaultValue
	}
	return v
}
