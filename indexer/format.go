package indexer

import (
	"encoding/binary"
	"io"

	"github.com/grailbio/base/errors"
)

// WriteIndex serializes guides and meta to w in the binary layout from
// spec.md §3: a 5-byte FileHeader, a 77-byte Metadata block, 3 bytes of
// zero padding, then len(guides) little-endian u64 words. meta.NSequences
// is overwritten with len(guides) before writing; callers need not set it.
func WriteIndex(w io.Writer, guides []uint64, meta Metadata) error {
	meta.NSequences = uint64(len(guides))

	header := [headerSize]byte{Magic}
	binary.LittleEndian.PutUint32(header[1:5], Version)
	if _, err := w.Write(header[:]); err != nil {
		return errors.E(err, "indexer: writing file header")
	}

	var mbuf [metadataSize]byte
	binary.LittleEndian.PutUint64(mbuf[0:8], meta.NSequences)
	binary.LittleEndian.PutUint64(mbuf[8:16], meta.Offset)
	mbuf[16] = meta.SpeciesID
	putFixedString(mbuf[17:47], meta.SpeciesName)
	putFixedString(mbuf[47:77], meta.Assembly)
	if _, err := w.Write(mbuf[:]); err != nil {
		return errors.E(err, "indexer: writing metadata")
	}

	var pad [paddingSize]byte
	if _, err := w.Write(pad[:]); err != nil {
		return errors.E(err, "indexer: writing padding")
	}

	gbuf := make([]byte, 8*len(guides))
	for i, g := range guides {
		binary.LittleEndian.PutUint64(gbuf[8*i:8*i+8], g)
	}
	if _, err := w.Write(gbuf); err != nil {
		return errors.E(err, "indexer: writing guide array")
	}
	return nil
}

func putFixedString(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func parseFixedString(src []byte) string {
	n := 0
	for n < len(src) && src[n] != 0 {
		n++
	}
	return string(src[:n])
}

// ReadHeader validates the 5-byte FileHeader, per spec.md §7 error kind 1:
// fatal at open if the magic byte or version don't match, or the header
// is short.
func ReadHeader(r io.Reader) error {
	var buf [headerSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return errors.E(err, "indexer: reading file header")
	}
	if buf[0] != Magic {
		return errors.Errorf("indexer: bad magic byte %#x, want %#x", buf[0], Magic)
	}
	if v := binary.LittleEndian.Uint32(buf[1:5]); v != Version {
		return errors.Errorf("indexer: unsupported version %d, want %d", v, Version)
	}
	return nil
}

// ReadMetadata parses the 77-byte Metadata block, per spec.md §7 error
// kind 2: fatal at open if the block is short.
func ReadMetadata(r io.Reader) (Metadata, error) {
	var buf [metadataSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Metadata{}, errors.E(err, "indexer: reading metadata")
	}
	return Metadata{
		NSequences:  binary.LittleEndian.Uint64(buf[0:8]),
		Offset:      binary.LittleEndian.Uint64(buf[8:16]),
		SpeciesID:   buf[16],
		SpeciesName: parseFixedString(buf[17:47]),
		Assembly:    parseFixedString(buf[47:77]),
	}, nil
}

// SkipPadding discards the 3 padding bytes between Metadata and the guide
// array.
func SkipPadding(r io.Reader) error {
	var buf [paddingSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return errors.E(err, "indexer: reading padding")
	}
	return nil
}

// ReadGuides reads the remainder of r as a little-endian u64 array and
// validates its length against meta.NSequences, per spec.md §7 error kind
// 3: fatal at open if the guide count doesn't match.
func ReadGuides(r io.Reader, meta Metadata) ([]uint64, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.E(err, "indexer: reading guide array")
	}
	if len(raw)%8 != 0 {
		return nil, errors.Errorf("indexer: guide array length %d is not a multiple of 8", len(raw))
	}
	n := len(raw) / 8
	if uint64(n) != meta.NSequences {
		return nil, errors.Errorf("indexer: guide count mismatch: header says %d, file has %d", meta.NSequences, n)
	}
	guides := make([]uint64, n)
	for i := range guides {
		guides[i] = binary.LittleEndian.Uint64(raw[8*i : 8*i+8])
	}
	return guides, nil
}
