package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/hupe1980/vecsearch"
	"github.com/hupe1980/vecsearch/lexical"
)

// SearchResponse is the body of a search.
type SearchResponse struct {
	RequestID  string   `json:"requestId"`
	Collection string   `json:"collection"`
	Query      string   `json:"query"`
	Took       int64    `json:"took"` // milliseconds
	Count      int      `json:"count"`
	Results    []Result `json:"results"`
}

// Result is one document of a search response. Similarity is the Euclidean
// distance of the closest chunk; lower is closer.
type Result struct {
	ID         uint32            `json:"id"`
	Similarity float32           `json:"similarity"`
	Fields     map[string]string `json:"fields"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	docs := make(map[string]int, len(s.collections))
	for name, c := range s.collections {
		docs[name] = c.Searcher.Len()
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "documents": docs})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		name = s.fallback
	}
	col, ok := s.collections[name]
	if !ok {
		s.respondError(w, http.StatusNotFound, "unknown collection")
		return
	}

	params := r.URL.Query()

	requestID := params.Get("requestId")
	if requestID == "" {
		requestID = uuid.NewString()
	}

	query := params.Get("query")
	if strings.TrimSpace(query) == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}

	clusterTopn, err := intParam(params.Get("clusterTopn"), s.cfg.DefaultClusterTopN)
	if err != nil || clusterTopn <= 0 {
		s.respondError(w, http.StatusBadRequest, "clusterTopn must be a positive integer")
		return
	}
	topn, err := intParam(params.Get("topn"), s.cfg.DefaultTopN)
	if err != nil || topn <= 0 || (s.cfg.MaxTopN > 0 && topn > s.cfg.MaxTopN) {
		s.respondError(w, http.StatusBadRequest, "topn out of range")
		return
	}

	logger := s.logger.With(
		"request_id", requestID,
		"user_id", params.Get("userId"),
		"collection", name,
	)

	start := time.Now()
	var hits []vecsearch.Hit
	if keywords := params.Get("keywords"); strings.TrimSpace(keywords) != "" {
		hits, err = col.Searcher.SearchTextFiltered(r.Context(), query, keywords, clusterTopn, topn)
	} else {
		hits, err = col.Searcher.SearchText(r.Context(), query, clusterTopn, topn)
	}
	took := time.Since(start)

	if err != nil {
		var topnErr *vecsearch.ErrTopNExceedsCentroids
		switch {
		case errors.As(err, &topnErr), errors.Is(err, lexical.ErrNoKeywords):
			s.respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, vecsearch.ErrNoLexicalIndex):
			s.respondError(w, http.StatusNotImplemented, "keyword filtering not enabled")
		default:
			logger.Error("search failed", "error", err)
			s.respondError(w, http.StatusInternalServerError, "search failed")
		}
		return
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{
			ID:         h.ID,
			Similarity: h.Distance,
			Fields:     fields(logger, col.FieldNames, h),
		}
	}

	logger.Debug("search completed",
		"query", query,
		"results", len(results),
		"took", took,
	)

	s.respondJSON(w, http.StatusOK, SearchResponse{
		RequestID:  requestID,
		Collection: name,
		Query:      query,
		Took:       took.Milliseconds(),
		Count:      len(results),
		Results:    results,
	})
}

// fields zips the column names with the TAB-separated first chunk of h.
// Trailing empty columns are dropped by the loader, so fewer values than
// names is expected; the extra names are left out.
func fields(logger *slog.Logger, names []string, h vecsearch.Hit) map[string]string {
	out := make(map[string]string, len(names))
	if len(h.Texts) == 0 {
		return out
	}

	values := strings.Split(h.Texts[0], "\t")
	if len(values) != len(names) {
		logger.Info("field count mismatch",
			"id", h.ID,
			"names", len(names),
			"values", len(values),
		)
	}

	for i := range min(len(names), len(values)) {
		out[names[i]] = values[i]
	}
	return out
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, errorResponse{Error: msg})
}
