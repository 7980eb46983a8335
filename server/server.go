// Package server exposes a Scanner-backed HTTP query service: exact-match
// search and off-target scanning against one or more named index shards,
// with an optional Redis result cache for repeated off-target queries.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sanger-cellular-informatics/guide-index/scanner"
)

// interactiveMaxResults bounds the off-target ID list returned by an HTTP
// request, so a worst-case query against a huge shard can't blow up the
// response size; the full histogram in Summary is always exact regardless.
const interactiveMaxResults = 2000

// Server answers guide queries against a fixed set of named shards,
// loaded once at startup. It holds no other mutable state.
type Server struct {
	shards map[string]*scanner.Scanner
	cache  *resultCache
}

// New constructs a Server over the given named shards. cacheAddr may be
// empty, in which case result caching is disabled.
func New(shards map[string]*scanner.Scanner, cacheAddr string) *Server {
	return &Server{
		shards: shards,
		cache:  newResultCache(cacheAddr, 24*time.Hour),
	}
}

// RegisterRoutes registers this server's HTTP routes on router.
func (s *Server) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/v1/index/{shard}/metadata", s.handleMetadata).Methods("GET")
	router.HandleFunc("/v1/index/{shard}/search", s.handleSearch).Methods("GET")
	router.HandleFunc("/v1/index/{shard}/offtargets", s.handleOffTargets).Methods("GET")
}

func (s *Server) shardFor(w http.ResponseWriter, r *http.Request) (*scanner.Scanner, string, bool) {
	name := mux.Vars(r)["shard"]
	sc, ok := s.shards[name]
	if !ok {
		sendError(w, http.StatusNotFound, "shard %q not found", name)
		return nil, "", false
	}
	return sc, name, true
}

type metadataResponse struct {
	NSequences  uint64 `json:"n_sequences"`
	Offset      uint64 `json:"offset"`
	SpeciesID   uint8  `json:"species_id"`
	SpeciesName string `json:"species_name"`
	Assembly    string `json:"assembly"`
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	sc, _, ok := s.shardFor(w, r)
	if !ok {
		return
	}
	sendJSON(w, http.StatusOK, metadataResponse{
		NSequences:  sc.Meta.NSequences,
		Offset:      sc.Meta.Offset,
		SpeciesID:   sc.Meta.SpeciesID,
		SpeciesName: sc.Meta.SpeciesName,
		Assembly:    sc.Meta.Assembly,
	})
}

type searchResponse struct {
	IDs []uint64 `json:"ids"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	sc, _, ok := s.shardFor(w, r)
	if !ok {
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		sendError(w, http.StatusBadRequest, "missing required query parameter \"q\"")
		return
	}
	ids := sc.Search(query)
	resp := searchResponse{IDs: make([]uint64, len(ids))}
	for i, id := range ids {
		resp.IDs[i] = uint64(id) + sc.Meta.Offset
	}
	sendJSON(w, http.StatusOK, resp)
}

type offTargetResponse struct {
	Summary    [scanner.MaxDistance + 1]uint32 `json:"summary"`
	IDs        []uint64                        `json:"ids"`
	Overflowed bool                             `json:"overflowed"`
}

func (s *Server) handleOffTargets(w http.ResponseWriter, r *http.Request) {
	sc, shardName, ok := s.shardFor(w, r)
	if !ok {
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		sendError(w, http.StatusBadRequest, "missing required query parameter \"q\"")
		return
	}

	ctx := r.Context()
	if cached, hit := s.cache.get(ctx, shardName, query); hit {
		sendJSON(w, http.StatusOK, cached)
		return
	}

	result, err := sc.OffTargets(ctx, query, scanner.Opts{MaxResults: interactiveMaxResults})
	if err != nil {
		sendError(w, http.StatusInternalServerError, "scan failed: %v", err)
		return
	}
	resp := offTargetResponse{
		Summary:    result.Summary,
		IDs:        make([]uint64, len(result.IDs)),
		Overflowed: result.Overflowed,
	}
	for i, id := range result.IDs {
		resp.IDs[i] = uint64(id) + sc.Meta.Offset
	}
	s.cache.set(ctx, shardName, query, resp)
	sendJSON(w, http.StatusOK, resp)
}

func sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func sendError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	sendJSON(w, status, errorResponse{Error: fmt.Sprintf(format, args...)})
}
