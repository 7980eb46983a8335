// Package scanner loads a binary guide index (package indexer's wire
// format) and answers exact-match and off-target queries against it. The
// hot loop is a pure per-guide kernel with no allocation, sharded across
// workers by package traverse; it holds no state beyond the loaded guide
// array and is safe for concurrent queries.
package scanner

import (
	"context"
	"io"
	"runtime"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/traverse"
	"github.com/sanger-cellular-informatics/guide-index/codec"
	"github.com/sanger-cellular-informatics/guide-index/indexer"
)

// MaxDistance is the largest symbol-Hamming distance tracked in an
// off-target summary; guides farther than this are ignored entirely.
const MaxDistance = 4

// Scanner holds a loaded guide array and its metadata. It is read-only
// after LoadIndex returns and may be queried concurrently.
type Scanner struct {
	Guides []uint64
	Meta   indexer.Metadata
}

// LoadIndex reads a full index file (header, metadata, padding, guide
// array) from r, validating it per indexer's wire format.
func LoadIndex(r io.Reader) (*Scanner, error) {
	if err := indexer.ReadHeader(r); err != nil {
		return nil, err
	}
	meta, err := indexer.ReadMetadata(r)
	if err != nil {
		return nil, err
	}
	if err := indexer.SkipPadding(r); err != nil {
		return nil, err
	}
	guides, err := indexer.ReadGuides(r, meta)
	if err != nil {
		return nil, err
	}
	return &Scanner{Guides: guides, Meta: meta}, nil
}

// queryWords encodes a 20-nt query into its two strand representations:
// q1 as read off the + strand (PAM 3'), q0 as read off the - strand (PAM
// 5', i.e. the reverse complement of query with pam_right=0). Either
// being ErrorWord means the query contains a non-ACGT base.
func queryWords(query string) (q1, q0 uint64, ok bool) {
	q1 = codec.Encode(query, 1)
	q0 = codec.Encode(codec.ReverseComplementText(query), 0)
	if q1 == codec.ErrorWord || q0 == codec.ErrorWord {
		return 0, 0, false
	}
	return q1, q0, true
}

// Search returns the 1-based IDs of every guide that exactly matches
// query on either strand, in ascending order. A query containing a
// non-ACGT base always returns an empty slice.
func (s *Scanner) Search(query string) []int {
	q1, q0, ok := queryWords(query)
	if !ok {
		return nil
	}
	var ids []int
	for i, g := range s.Guides {
		if g == q1 || g == q0 {
			ids = append(ids, i+1)
		}
	}
	return ids
}

// ScoreOne computes the symbol-Hamming distance between guide word g and
// whichever of q1/q0 matches g's strand, per the comparand-selection rule
// in (g>>40)&1. It returns ok=false for an error-word guide, which the
// caller must then skip entirely rather than scoring. ScoreOne performs
// no allocation and touches no state outside its arguments, so it is
// suitable for a future per-guide GPU dispatch in addition to the CPU
// sharded loop in OffTargets.
func ScoreOne(g, q1, q0 uint64) (dist int, ok bool) {
	if g == codec.ErrorWord {
		return 0, false
	}
	comparand := q1
	if (g>>40)&1 == 0 {
		comparand = q0
	}
	return codec.SymbolHammingDistance(g, comparand), true
}

// Opts configures OffTargets.
type Opts struct {
	// MaxResults bounds the number of IDs returned in Result.IDs. 0 means
	// unbounded. When the bound is exceeded, scanning continues (so the
	// histogram in Result.Summary is always exact) but Result.Overflowed
	// is set and further IDs are dropped.
	MaxResults int
}

// Result is the outcome of an off-target scan.
type Result struct {
	// Summary[d] is the number of guides at symbol-Hamming distance d,
	// for d in [0, MaxDistance].
	Summary [MaxDistance + 1]uint32
	// IDs lists, in ascending order, the 1-based IDs of every guide at
	// distance <= MaxDistance from the query (on its own strand).
	IDs []int
	// Overflowed is true if Opts.MaxResults was positive and fewer IDs
	// are present in IDs than Summary's total implies.
	Overflowed bool
}

type shardAccum struct {
	summary [MaxDistance + 1]uint32
	ids     []int
}

// OffTargets scans the full guide array against query and returns the
// distance histogram and ID list. A query containing a non-ACGT base
// returns a zero Result immediately, matching the boundary behavior for
// an all-error-word index: both report summary=[0,0,0,0,0], ids=[].
//
// The scan shards s.Guides across runtime.NumCPU() workers via
// traverse.Each, each accumulating into a local shardAccum; after the
// barrier, summaries are summed element-wise and ID slices concatenated
// and sorted to restore ascending order (sharding does not preserve
// input order across workers, so this repo always sorts explicitly
// rather than relying on single-threaded emission order).
func (s *Scanner) OffTargets(ctx context.Context, query string, opts Opts) (Result, error) {
	q1, q0, ok := queryWords(query)
	if !ok {
		return Result{}, nil
	}
	if len(s.Guides) == 0 {
		return Result{}, nil
	}

	nWorkers := runtime.NumCPU()
	if nWorkers > len(s.Guides) {
		nWorkers = len(s.Guides)
	}
	if nWorkers < 1 {
		nWorkers = 1
	}
	accums := make([]shardAccum, nWorkers)

	err := traverse.Each(nWorkers, func(w int) error {
		n := len(s.Guides)
		start := (w * n) / nWorkers
		end := ((w + 1) * n) / nWorkers
		acc := &accums[w]
		for i := start; i < end; i++ {
			dist, ok := ScoreOne(s.Guides[i], q1, q0)
			if !ok || dist > MaxDistance {
				continue
			}
			acc.summary[dist]++
			acc.ids = append(acc.ids, i+1)
		}
		return nil
	})
	if err != nil {
		return Result{}, errors.E(err, "scanner: off-target scan")
	}

	var res Result
	var allIDs []int
	for _, acc := range accums {
		for d := 0; d <= MaxDistance; d++ {
			res.Summary[d] += acc.summary[d]
		}
		allIDs = append(allIDs, acc.ids...)
	}
	sort.Ints(allIDs)

	if opts.MaxResults > 0 && len(allIDs) > opts.MaxResults {
		res.IDs = allIDs[:opts.MaxResults]
		res.Overflowed = true
	} else {
		res.IDs = allIDs
	}
	return res, nil
}
