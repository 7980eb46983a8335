// Package indexer consumes the CSV records produced by package extractor
// (or an equivalent source), encodes each guide with package codec, and
// serializes the resulting array as the binary index format described in
// spec.md §3.
package indexer

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/dgryski/go-farm"
	"github.com/grailbio/base/errors"
	"github.com/sanger-cellular-informatics/guide-index/codec"
)

// Magic and Version identify the binary index format (spec.md §3, §7).
const (
	Magic   uint8  = 1
	Version uint32 = 3

	headerSize   = 5  // magic(1) + version(4)
	metadataSize = 77 // see SPEC_FULL.md's resolution of the wire-size ambiguity
	paddingSize  = 3
)

// Metadata describes a guide index shard (spec.md §3). SequenceLength is
// not part of the on-disk layout: it is a protocol constant (always
// codec.GuideLen for this specification) exposed here only for API parity
// with callers that expect to see it alongside the rest of the metadata.
type Metadata struct {
	NSequences  uint64
	Offset      uint64
	SpeciesID   uint8
	SpeciesName string // up to 30 bytes, NUL-padded on disk
	Assembly    string // up to 30 bytes, NUL-padded on disk
}

// SequenceLength returns the protospacer length assumed by this index
// format. It is always codec.GuideLen.
func (m Metadata) SequenceLength() uint64 { return codec.GuideLen }

// Opts configures Build.
type Opts struct {
	// LegacyMode expects a trailing species_id column on every CSV row (5
	// columns instead of 4), matching extractor's legacy CSV shape.
	LegacyMode bool
	// PamLen is the PAM pattern length used to produce the CSV input; it
	// determines the expected total sequence column length
	// (PamLen + codec.GuideLen).
	PamLen int
	Metadata
}

// Build reads one or more CSV sources (in argument order, which defines
// guide ID) and returns the packed guide array. It never writes a partial
// result: any malformed record aborts the whole build with a diagnostic
// naming the offending line, and the caller simply discards the returned
// error without having written anything.
func Build(sources []io.Reader, opts Opts) ([]uint64, error) {
	wantCols := 4
	if opts.LegacyMode {
		wantCols = 5
	}
	wantSeqLen := opts.PamLen + codec.GuideLen

	var guides []uint64
	for srcIdx, src := range sources {
		scanner := bufio.NewScanner(src)
		scanner.Buffer(make([]byte, 0, 4096), 1<<20)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := scanner.Text()
			if line == "" {
				continue
			}
			cols := strings.Split(line, ",")
			if len(cols) != wantCols {
				return nil, errors.Errorf(
					"indexer: source %d line %d: record %q has %d columns, want %d",
					srcIdx, lineNo, line, len(cols), wantCols)
			}
			sequence := cols[2]
			if len(sequence) != wantSeqLen {
				return nil, errors.Errorf(
					"indexer: source %d line %d: record %q has sequence length %d, want %d",
					srcIdx, lineNo, line, len(sequence), wantSeqLen)
			}
			pamRight, err := strconv.ParseUint(cols[3], 10, 8)
			if err != nil || (pamRight != 0 && pamRight != 1) {
				return nil, errors.Errorf(
					"indexer: source %d line %d: record %q has invalid pam_right column %q",
					srcIdx, lineNo, line, cols[3])
			}
			protospacer := protospacerOf(sequence, uint8(pamRight), opts.PamLen)
			guides = append(guides, codec.Encode(protospacer, uint8(pamRight)))
		}
		if err := scanner.Err(); err != nil {
			return nil, errors.E(err, "indexer: reading source", srcIdx)
		}
	}
	return guides, nil
}

// protospacerOf slices the guide_len-nt protospacer out of a full
// PAM+protospacer sequence, dropping the PAM from whichever side it sits
// on (spec.md §4.3).
func protospacerOf(sequence string, pamRight uint8, pamLen int) string {
	if pamRight == 1 {
		return sequence[:codec.GuideLen]
	}
	return sequence[len(sequence)-codec.GuideLen:]
}

// ShardKey fingerprints a guide word for bucketing across index shards
// (used by cmd/guide-merge to distribute guides across output shards by a
// stable, content-derived key rather than ingestion order).
func ShardKey(word uint64) uint64 {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(word >> (8 * i))
	}
	return farm.Hash64(buf[:])
}
