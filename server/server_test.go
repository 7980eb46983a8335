package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sanger-cellular-informatics/guide-index/codec"
	"github.com/sanger-cellular-informatics/guide-index/indexer"
	"github.com/sanger-cellular-informatics/guide-index/scanner"
)

const testQuery = "ACGTACGTACGTACGTACGT"

func testRouter(t *testing.T) *mux.Router {
	t.Helper()
	sc := &scanner.Scanner{
		Guides: []uint64{codec.Encode(testQuery, 1), codec.ErrorWord},
		Meta:   indexer.Metadata{Offset: 100, SpeciesID: 1, SpeciesName: "Human", Assembly: "GRCh38"},
	}
	srv := New(map[string]*scanner.Scanner{"chr1": sc}, "")
	router := mux.NewRouter()
	srv.RegisterRoutes(router)
	return router
}

func TestHandleMetadata(t *testing.T) {
	router := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/index/chr1/metadata", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var meta metadataResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &meta); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if meta.Assembly != "GRCh38" || meta.Offset != 100 {
		t.Errorf("metadata = %+v, want assembly GRCh38 offset 100", meta)
	}
}

func TestHandleMetadataUnknownShard(t *testing.T) {
	router := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/index/nope/metadata", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleSearch(t *testing.T) {
	router := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/index/chr1/search?q="+testQuery, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp searchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.IDs) != 1 || resp.IDs[0] != 101 {
		t.Errorf("IDs = %v, want [101] (offset 100 + in-shard id 1)", resp.IDs)
	}
}

func TestHandleSearchMissingSequence(t *testing.T) {
	router := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/index/chr1/search", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleOffTargets(t *testing.T) {
	router := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/index/chr1/offtargets?q="+testQuery, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp offTargetResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Summary[0] != 1 {
		t.Errorf("Summary[0] = %d, want 1", resp.Summary[0])
	}
	if len(resp.IDs) != 1 || resp.IDs[0] != 101 {
		t.Errorf("IDs = %v, want [101]", resp.IDs)
	}
}

func TestCacheKeyIsDeterministicAndDistinguishesShards(t *testing.T) {
	k1 := cacheKey("chr1", testQuery)
	k2 := cacheKey("chr1", testQuery)
	k3 := cacheKey("chr2", testQuery)
	if k1 != k2 {
		t.Errorf("cacheKey is not deterministic: %q != %q", k1, k2)
	}
	if k1 == k3 {
		t.Errorf("cacheKey does not distinguish shards: %q == %q", k1, k3)
	}
}

func TestNilCacheAlwaysMisses(t *testing.T) {
	var c *resultCache
	if _, hit := c.get(nil, "chr1", testQuery); hit { //nolint:staticcheck
		t.Error("a nil cache must never report a hit")
	}
}
