// Package extractor streams a FASTA reference and emits the
// (chromosome, position, window, pam_right) records that the indexer
// consumes, one per PAM hit on either strand.
package extractor

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/klauspost/compress/gzip"
	perrors "github.com/pkg/errors"

	"github.com/grailbio/base/errors"
	"github.com/sanger-cellular-informatics/guide-index/codec"
)

// chromosomeRe extracts the chromosome name from a FASTA header line, per
// spec.md §4.2: the capture of `>(.*?) dna:chromosome`.
var chromosomeRe = regexp.MustCompile(`>(.*?) dna:chromosome`)

// Record is one PAM hit emitted by the extractor.
type Record struct {
	Chromosome string
	// Position is the 1-based index, within the chromosome, of the left
	// edge of the PAM+protospacer window that produced this hit.
	Position int64
	// Sequence is the full window (PAM + protospacer, concatenated in
	// buffer order), of length len(Opts.Pam)+codec.GuideLen.
	Sequence string
	// PamRight is 1 if the PAM sits 3' of the protospacer (guide read off
	// the + strand), 0 if 5' (guide read off the - strand).
	PamRight uint8
}

// Opts configures Extract.
type Opts struct {
	// Pam is the PAM pattern to search for, e.g. "NGG". 'N' in the pattern
	// matches any of A/C/G/T.
	Pam string
	// LegacyMode relaxes PAM matching so that a non-ACGT reference base
	// compares equal to a pattern position iff that pattern position is
	// 'N'. When false (the default), a non-ACGT reference base never
	// matches any pattern position, including 'N'.
	LegacyMode bool
}

func windowLen(o Opts) int { return len(o.Pam) + codec.GuideLen }

// Open wraps r so that gzip-compressed reference streams are transparently
// decompressed; reference FASTA files are commonly distributed as .fa.gz.
func Open(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, errors.E(err, "extractor: peeking at input stream")
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, errors.E(err, "extractor: opening gzip stream")
		}
		return gz, nil
	}
	return br, nil
}

// Extract scans a FASTA reference from r, structured per spec.md §4.2/§6,
// and calls emit for every PAM hit on either strand, in chromosome/position
// order. It returns a fatal error if a sequence header doesn't match the
// chromosome regex; malformed PAM matches are never an error and simply
// produce no emission for that window/strand.
func Extract(r io.Reader, opts Opts, emit func(Record)) error {
	if len(opts.Pam) == 0 {
		return errors.New("extractor: empty PAM pattern")
	}
	revPam := codec.ReverseComplementText(opts.Pam)
	win := windowLen(opts)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<30)

	var (
		chromosome string
		haveChrom  bool
		buf        = make([]byte, 0, win)
		position   int64
	)

	resetChromosome := func() {
		buf = buf[:0]
		position = 0
	}

	pushBase := func(b byte) {
		if len(buf) < win {
			buf = append(buf, b)
		} else {
			copy(buf, buf[1:])
			buf[win-1] = b
		}
		if len(buf) < win {
			return
		}
		position++
		if matchPam(buf, revPam, false, opts.LegacyMode) {
			emit(Record{
				Chromosome: chromosome,
				Position:   position,
				Sequence:   string(buf),
				PamRight:   0,
			})
		}
		if matchPam(buf, opts.Pam, true, opts.LegacyMode) {
			emit(Record{
				Chromosome: chromosome,
				Position:   position,
				Sequence:   string(buf),
				PamRight:   1,
			})
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			m := chromosomeRe.FindStringSubmatch(line)
			if m == nil {
				return errors.Errorf("extractor: malformed chromosome header: %q", line)
			}
			chromosome = m[1]
			haveChrom = true
			resetChromosome()
			continue
		}
		if !haveChrom {
			return errors.Errorf("extractor: sequence data before any chromosome header: %q", line)
		}
		for i := 0; i < len(line); i++ {
			pushBase(line[i])
		}
	}
	if err := scanner.Err(); err != nil {
		return perrors.Wrap(err, "extractor: reading reference stream")
	}
	return nil
}

// matchPam checks whether pamSeq, read at the appropriate end of window
// (the last len(pamSeq) bytes if pamOnRight, else the first len(pamSeq)
// bytes), matches pamSeq per spec.md §4.2's character-by-character rule:
// 'N' in the pattern matches anything; in strict mode, a non-ACGT DNA
// character never matches, even against a pattern 'N'; in legacy mode, a
// non-ACGT DNA character matches iff the pattern character is 'N'.
func matchPam(window []byte, pamSeq string, pamOnRight bool, legacyMode bool) bool {
	start := 0
	if pamOnRight {
		start = len(window) - len(pamSeq)
	}
	for i := 0; i < len(pamSeq); i++ {
		dnaCh := window[start+i]
		if !legacyMode && !isACGT(dnaCh) {
			return false
		}
		if pamSeq[i] == 'N' {
			continue
		}
		if dnaCh != pamSeq[i] {
			return false
		}
	}
	return true
}

func isACGT(b byte) bool {
	switch b {
	case 'A', 'C', 'G', 'T':
		return true
	default:
		return false
	}
}

// WriteCSV runs Extract and writes each Record as a CSV row to w, per
// spec.md §6: 4 columns normally, or 5 with a trailing constant
// species_id column (legacy_mode's CSV shape, distinct from PAM-matching
// legacy_mode but gated by the same flag here, matching
// original_source/py_crispr_analyser/gather.py's gather()).
func WriteCSV(w io.Writer, r io.Reader, opts Opts) error {
	bw := bufio.NewWriter(w)
	var writeErr error
	n := 0
	extractErr := Extract(r, opts, func(rec Record) {
		if writeErr != nil {
			return
		}
		n++
		var sb strings.Builder
		sb.WriteString(csvQuote(rec.Chromosome))
		sb.WriteByte(',')
		writeInt(&sb, rec.Position)
		sb.WriteByte(',')
		sb.WriteString(rec.Sequence)
		sb.WriteByte(',')
		writeInt(&sb, int64(rec.PamRight))
		if opts.LegacyMode {
			sb.WriteString(",1")
		}
		sb.WriteByte('\n')
		if _, err := bw.WriteString(sb.String()); err != nil {
			writeErr = err
		}
	})
	if writeErr != nil {
		return errors.E(writeErr, "extractor: writing CSV output")
	}
	if extractErr != nil {
		return extractErr
	}
	return bw.Flush()
}

func writeInt(sb *strings.Builder, v int64) {
	if v == 0 {
		sb.WriteByte('0')
		return
	}
	if v < 0 {
		sb.WriteByte('-')
		v = -v
	}
	var digits [20]byte
	i := len(digits)
	for v > 0 {
		i--
		digits[i] = byte('0' + v%10)
		v /= 10
	}
	sb.Write(digits[i:])
}

func csvQuote(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
