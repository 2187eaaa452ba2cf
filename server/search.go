package server

import (
	"errors"
	"net/http"

	"github.com/visioncap/visioncap"
	"github.com/visioncap/visioncap/apierr"
	"github.com/visioncap/visioncap/tenancy"
)

const defaultSearchK = 10

type searchResultItem struct {
	ID           string  `json:"id"`
	Caption      string  `json:"caption"`
	Score        float64 `json:"score"`
	DownloadURL  string  `json:"download_url"`
	ThumbnailURL string  `json:"thumbnail_url"`
}

type searchResponse struct {
	Query   string             `json:"query"`
	Results []searchResultItem `json:"results"`
}

// HandleSearch implements GET /search?q=...&k=10&scope=all|mine|public.
func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	callerID, hasCaller, _ := callerIdentity(r.Context())

	query := r.URL.Query().Get("q")
	if query == "" {
		apierr.Write(w, apierr.BadRequest("missing q parameter"))
		return
	}

	scope := visioncap.ScopePublic
	if raw := r.URL.Query().Get("scope"); raw != "" {
		scope = visioncap.Scope(raw)
	}

	k := queryInt(r, "k", defaultSearchK)

	results, err := s.planner.Search(r.Context(), query, k, scope, callerID, hasCaller)
	if err != nil {
		if errors.Is(err, tenancy.ErrUnauthenticated) {
			apierr.Write(w, apierr.Unauthenticated(err.Error()))
			return
		}
		s.logger.Errorw("search failed", "error", err, "query", query)
		apierr.Write(w, apierr.Internal("search failed"))
		return
	}

	items := make([]searchResultItem, 0, len(results))
	for _, result := range results {
		items = append(items, searchResultItem{
			ID:           result.ImageID,
			Caption:      result.Caption,
			Score:        result.Score,
			DownloadURL:  "/images/" + result.ImageID + "/download",
			ThumbnailURL: "/images/" + result.ImageID + "/thumbnail",
		})
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: query, Results: items})
}
