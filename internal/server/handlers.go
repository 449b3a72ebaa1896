package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dsaquest/contestscope/internal/utils"
	"github.com/dsaquest/contestscope/pkg/aggregator"
	"github.com/dsaquest/contestscope/pkg/contest"
	"github.com/dsaquest/contestscope/pkg/digest"
)

const maxUpcomingHours = 24 * 30

type contestsResponse struct {
	Success     bool              `json:"success"`
	Contests    []contest.Contest `json:"contests"`
	LastUpdated string            `json:"lastUpdated"`
	Cached      bool              `json:"cached"`
	Hours       int               `json:"hours,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Server) load(r *http.Request) (*aggregator.Result, bool, error) {
	if s.cfg.Cache == nil || s.cfg.Load == nil {
		return nil, false, errors.New("aggregation is not configured")
	}
	return s.cfg.Cache.GetOrLoad(r.Context(), s.cfg.Load)
}

func (s *Server) handleContests(w http.ResponseWriter, r *http.Request) {
	res, cached, err := s.load(r)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to fetch contests", err)
		return
	}
	s.respondJSON(w, http.StatusOK, contestsResponse{
		Success:     true,
		Contests:    res.Contests,
		LastUpdated: res.GeneratedAt.UTC().Format(time.RFC3339),
		Cached:      cached,
	})
}

func (s *Server) handleRankedContests(w http.ResponseWriter, r *http.Request) {
	res, cached, err := s.load(r)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to fetch contests", err)
		return
	}
	s.respondJSON(w, http.StatusOK, contestsResponse{
		Success:     true,
		Contests:    s.cfg.Ranking.Rank(res.Contests, s.now()),
		LastUpdated: res.GeneratedAt.UTC().Format(time.RFC3339),
		Cached:      cached,
	})
}

// handleUpcomingContests previews what a digest sent now would contain.
// Query params: hours (default 24)
func (s *Server) handleUpcomingContests(w http.ResponseWriter, r *http.Request) {
	hours := int(digest.DefaultWindow / time.Hour)
	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxUpcomingHours {
			s.respondError(w, http.StatusBadRequest, "hours must be an integer between 1 and "+strconv.Itoa(maxUpcomingHours), nil)
			return
		}
		hours = n
	}

	res, cached, err := s.load(r)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to fetch contests", err)
		return
	}
	now := s.now()
	s.respondJSON(w, http.StatusOK, contestsResponse{
		Success:     true,
		Contests:    digest.SelectWithinWindow(res.Contests, now, now.Add(time.Duration(hours)*time.Hour)),
		LastUpdated: res.GeneratedAt.UTC().Format(time.RFC3339),
		Cached:      cached,
		Hours:       hours,
	})
}

// handleSources reports how each source did in the cached aggregation. It
// never triggers a fetch.
func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"success": true,
		"sources": []aggregator.SourceReport{},
	}
	if s.cfg.Cache != nil {
		if e, ok := s.cfg.Cache.Entry(); ok && e.Payload != nil {
			resp["sources"] = e.Payload.Sources
			resp["runId"] = e.Payload.RunID
			resp["lastUpdated"] = e.Payload.GeneratedAt.UTC().Format(time.RFC3339)
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": s.now().UTC(),
	})
}

func (s *Server) handleSendDigest(w http.ResponseWriter, r *http.Request) {
	if s.cfg.DigestLockPath != "" {
		lock, err := utils.NewRunLock(s.cfg.DigestLockPath)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, "failed to prepare digest lock", err)
			return
		}
		if err := lock.TryLock(); err != nil {
			if errors.Is(err, utils.ErrRunInProgress) {
				s.respondError(w, http.StatusConflict, err.Error(), nil)
				return
			}
			s.respondError(w, http.StatusInternalServerError, "failed to acquire digest lock", err)
			return
		}
		defer lock.Unlock()
	}

	sum, err := s.cfg.Digest.Run(context.WithoutCancel(r.Context()), s.now())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "digest run failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, sum)
}

// bearerAuth rejects the request before any work is done unless it carries
// the configured digest secret.
func (s *Server) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.DigestSecret == "" || s.cfg.Digest == nil {
			s.respondError(w, http.StatusServiceUnavailable, "digest trigger is not configured", nil)
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.DigestSecret)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="digest"`)
			s.respondError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("error encoding response: %v", err)
	}
}

// respondError writes the {success:false, error} envelope. The underlying
// error is logged, never sent to the client.
func (s *Server) respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		s.log.Errorf("%s: %v", message, err)
	}
	s.respondJSON(w, status, errorResponse{Success: false, Error: message})
}
