// Package server exposes the HTTP surface of §6 on a stdlib
// net/http.ServeMux, grounded on the teacher's ModelProxy: one struct
// holding every collaborator, one handler method per route, errors
// surfaced through apierr.E the way the teacher's handleError maps typed
// errors onto status codes.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/visioncap/visioncap"
	"github.com/visioncap/visioncap/auth"
	"github.com/visioncap/visioncap/executor"
	"github.com/visioncap/visioncap/jobqueue"
	"github.com/visioncap/visioncap/modelhost"
	"github.com/visioncap/visioncap/router"
	"github.com/visioncap/visioncap/search"
	"github.com/visioncap/visioncap/store"
	"github.com/visioncap/visioncap/telemetry"
	"github.com/visioncap/visioncap/utils/array"
)

// validVisibilities is the allowed set for the visibility form/body field.
var validVisibilities = []visioncap.Visibility{
	visioncap.VisibilityPrivate,
	visioncap.VisibilityPublic,
	visioncap.VisibilityPublicAdmin,
}

// maxUploadBytes bounds the multipart body the sync and async ingestion
// handlers will read into memory before handing bytes to the router.
const maxUploadBytes = 32 << 20 // 32 MiB

// Server wires every component the HTTP surface needs behind one set of
// handler methods.
type Server struct {
	router       *router.Router
	executor     *executor.Executor
	embedHost    modelhost.Host
	blobStore    store.BlobStore
	embedStore   store.EmbedStore
	queue        *jobqueue.Queue
	planner      *search.Planner
	authManager  *auth.Manager
	latencyBudgetMs int
	logger       *zap.SugaredLogger
	rec          *telemetry.Recorder
}

// New constructs a Server. queue may be nil, in which case the async
// ingestion and job-status routes stay registered but answer with an
// internal error.
func New(
	r *router.Router,
	exec *executor.Executor,
	embedHost modelhost.Host,
	blobStore store.BlobStore,
	embedStore store.EmbedStore,
	queue *jobqueue.Queue,
	planner *search.Planner,
	authManager *auth.Manager,
	latencyBudgetMs int,
	logger *zap.SugaredLogger,
	rec *telemetry.Recorder,
) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if latencyBudgetMs <= 0 {
		latencyBudgetMs = 600
	}
	return &Server{
		router:          r,
		executor:        exec,
		embedHost:       embedHost,
		blobStore:       blobStore,
		embedStore:      embedStore,
		queue:           queue,
		planner:         planner,
		authManager:     authManager,
		latencyBudgetMs: latencyBudgetMs,
		logger:          logger,
		rec:             rec,
	}
}

// Mux builds the *http.ServeMux for every route in §6, wrapped in the auth
// middleware (which attaches an Identity without rejecting anonymous
// requests; individual handlers enforce their own auth requirements).
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /images", s.HandleIngestSync)
	mux.HandleFunc("POST /images/async", s.HandleIngestAsync)
	mux.HandleFunc("GET /jobs/{job_id}", s.HandleJobStatus)
	mux.HandleFunc("GET /search", s.HandleSearch)
	mux.HandleFunc("GET /images", s.HandleListImages)
	mux.HandleFunc("GET /images/{id}", s.HandleGetImage)
	mux.HandleFunc("GET /images/{id}/download", s.HandleDownload)
	mux.HandleFunc("GET /images/{id}/thumbnail", s.HandleDownload)
	mux.HandleFunc("PATCH /images/{id}", s.HandlePatchImage)
	mux.HandleFunc("DELETE /images/{id}", s.HandleDeleteImage)

	if s.authManager == nil {
		return mux
	}
	wrapped := http.NewServeMux()
	wrapped.Handle("/", s.authManager.Middleware(mux))
	return wrapped
}

// callerIdentity resolves the request's identity into the (callerID,
// hasCaller, isAdmin) triple every handler needs.
func callerIdentity(ctx context.Context) (string, bool, bool) {
	identity := auth.IdentityFromContext(ctx)
	if identity == nil {
		return "", false, false
	}
	return identity.UserID, true, identity.IsAdmin
}

func parseVisibility(raw string) (visioncap.Visibility, bool) {
	v := visioncap.Visibility(raw)
	if !array.Contains(validVisibilities, v) {
		return "", false
	}
	return v, true
}

// parseUploadForm extracts the shared multipart fields of the sync and
// async ingestion endpoints.
func parseUploadForm(r *http.Request) ([]byte, visioncap.Visibility, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, "", fmt.Errorf("parse multipart form: %w", err)
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, "", fmt.Errorf("missing file field: %w", err)
	}
	defer file.Close()

	imageBytes, err := readAllLimited(file, maxUploadBytes)
	if err != nil {
		return nil, "", fmt.Errorf("read file field: %w", err)
	}

	visibility, ok := parseVisibility(r.FormValue("visibility"))
	if !ok {
		return nil, "", errInvalidVisibility
	}

	return imageBytes, visibility, nil
}

var errInvalidVisibility = errors.New("invalid visibility")

func readAllLimited(f multipart.File, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(f, limit+1))
}

func clientHints(r *http.Request) (string, float64, bool) {
	hint := r.Header.Get("x-client-caption")
	raw := r.Header.Get("x-client-confidence")
	if raw == "" {
		return hint, 0, false
	}
	confidence, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return hint, 0, false
	}
	return hint, confidence, true
}

func newUUID() string {
	return uuid.NewString()
}

func timePtr(t time.Time) *time.Time {
	return &t
}

// writeJSON encodes body as the response, setting status first.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		return
	}
}

func decodeJSON(r *http.Request, dest interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dest)
}
