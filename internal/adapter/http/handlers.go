package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/couchcryptid/issue-geocoder-service/internal/domain"
)

type reverseResponse struct {
	Place       *domain.PlaceResult `json:"place"`
	Attribution string              `json:"attribution"`
}

type attributionResponse struct {
	Attribution string `json:"attribution"`
	Detailed    string `json:"detailed"`
}

func (s *Server) handleReverse(w http.ResponseWriter, r *http.Request) {
	lat, lng, err := parseCoordinates(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	place, err := s.geocoder.Resolve(r.Context(), lat, lng)
	if err != nil {
		var ie *domain.InternalError
		if errors.As(err, &ie) {
			s.logger.Error("resolve failed", "op", ie.Op, "error", err, "request_id", RequestIDFromContext(r.Context()))
		} else {
			s.logger.Error("resolve failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, reverseResponse{
		Place:       place,
		Attribution: s.geocoder.Attribution(),
	})
}

func (s *Server) handleAttribution(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, attributionResponse{
		Attribution: s.geocoder.Attribution(),
		Detailed:    s.geocoder.DetailedAttribution(),
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.geocoder.CacheStats())
}

func (s *Server) handleClearCache(w http.ResponseWriter, _ *http.Request) {
	s.geocoder.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

func parseCoordinates(r *http.Request) (float64, float64, error) {
	q := r.URL.Query()
	lat, err := parseParam(q.Get("lat"), "lat")
	if err != nil {
		return 0, 0, err
	}
	lng, err := parseParam(q.Get("lng"), "lng")
	if err != nil {
		return 0, 0, err
	}
	if err := domain.ValidateCoordinates(lat, lng); err != nil {
		return 0, 0, err
	}
	return lat, lng, nil
}

func parseParam(v, name string) (float64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, fmt.Errorf("missing %s parameter", name)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter %q", name, v)
	}
	return f, nil
}
