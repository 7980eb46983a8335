package extractor

import (
	"strings"
	"testing"
)

const mtFasta = `>MT dna:chromosome chromosome:GRCh38:MT:1:16569:1 REF
GATCACAGGTCTATCACCCTATTAACCACTCACGGGAGCTCTCCATGCATTTGGTATTTTCGTCTGGGG
GGTATGCACGCGATAGCATTGCGAGACGCTGGAGCCGGAGCACCCTATGTCGCAGTATCTGTCTTTGAT
TCCTGCCTCATCCTATTATTTATCGCACCTACGTTCAATATT
`

func extractAll(t *testing.T, fasta string, opts Opts) []Record {
	t.Helper()
	var got []Record
	if err := Extract(strings.NewReader(fasta), opts, func(r Record) {
		got = append(got, r)
	}); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	return got
}

func TestExtractNGGSingleChromosome(t *testing.T) {
	recs := extractAll(t, mtFasta, Opts{Pam: "NGG"})
	if len(recs) != 20 {
		t.Fatalf("got %d records, want 20", len(recs))
	}
	first := recs[0]
	if first.Chromosome != "MT" || first.Position != 13 ||
		first.Sequence != "ATCACCCTATTAACCACTCACGG" || first.PamRight != 1 {
		t.Errorf("first record = %+v, want {MT 13 ATCACCCTATTAACCACTCACGG 1}", first)
	}
	last := recs[len(recs)-1]
	if last.Chromosome != "MT" || last.Position != 150 ||
		last.Sequence != "CCTATTATTTATCGCACCTACGT" || last.PamRight != 0 {
		t.Errorf("last record = %+v, want {MT 150 CCTATTATTTATCGCACCTACGT 0}", last)
	}
}

func TestExtractChromosomeBoundaryResets(t *testing.T) {
	fasta := ">chr1 dna:chromosome\n" +
		"ACGTACGTACGTACGTACGTACGG\n" +
		">chr2 dna:chromosome\n" +
		"ACGTACGTACGTACGTACGTACGG\n"
	recs := extractAll(t, fasta, Opts{Pam: "NGG"})
	for _, r := range recs {
		if r.Chromosome != "chr1" && r.Chromosome != "chr2" {
			t.Fatalf("unexpected chromosome in record: %+v", r)
		}
	}
	// Every record's position must be within a single chromosome's own
	// window count; none may straddle the boundary (there is no way to
	// observe that directly here other than that Position resets to small
	// values for chr2 after chr1 emits some of its own).
	var chr1Max, chr2Max int64
	for _, r := range recs {
		if r.Chromosome == "chr1" && r.Position > chr1Max {
			chr1Max = r.Position
		}
		if r.Chromosome == "chr2" && r.Position > chr2Max {
			chr2Max = r.Position
		}
	}
	if chr1Max == 0 || chr2Max == 0 {
		t.Fatalf("expected hits on both chromosomes, got chr1Max=%d chr2Max=%d", chr1Max, chr2Max)
	}
}

func TestMatchPamNWildcardInPattern(t *testing.T) {
	if !matchPam([]byte("ATCGA"), "GN", true, false) {
		t.Error("GN should match right-anchored 'GA'")
	}
	if matchPam([]byte("ATCGA"), "AN", true, false) {
		t.Error("AN should not match right-anchored 'GA'")
	}
}

func TestMatchPamStrictModeRejectsNonACGT(t *testing.T) {
	if matchPam([]byte("ATCGN"), "NN", true, false) {
		t.Error("strict mode must reject a non-ACGT DNA base even against pattern N")
	}
	if !matchPam([]byte("ATCGN"), "NN", true, true) {
		t.Error("legacy mode must accept a non-ACGT DNA base against pattern N")
	}
}

func TestMatchPamOnLeftUsesReverseComplementOfPattern(t *testing.T) {
	// Left-PAM strand compares against the reverse complement of the
	// configured pattern; "CCN" reverse-complemented is "NGG".
	revPam := "NGG" // reverse complement of "CCN"
	if !matchPam([]byte("AGGAT"), revPam, false, false) {
		t.Error("left-PAM window should match the reverse complement pattern")
	}
}

func TestExtractMalformedHeaderIsFatal(t *testing.T) {
	fasta := ">not a chromosome header\nACGT\n"
	err := Extract(strings.NewReader(fasta), Opts{Pam: "NGG"}, func(Record) {})
	if err == nil {
		t.Fatal("expected a fatal error for a malformed chromosome header")
	}
}

func TestExtractEmptyLinesSkipped(t *testing.T) {
	fasta := ">chr1 dna:chromosome\n\nACGTACGTACGTACGTACGTACGG\n\n"
	recs := extractAll(t, fasta, Opts{Pam: "NGG"})
	if len(recs) == 0 {
		t.Fatal("expected at least one record despite blank lines")
	}
}

func TestWriteCSVMalformedHeaderIsFatal(t *testing.T) {
	fasta := ">not a chromosome header\nACGT\n"
	var sb strings.Builder
	if err := WriteCSV(&sb, strings.NewReader(fasta), Opts{Pam: "NGG"}); err == nil {
		t.Fatal("expected WriteCSV to propagate Extract's fatal error for a malformed chromosome header")
	}
}

func TestWriteCSVLegacyColumn(t *testing.T) {
	fasta := ">chr1 dna:chromosome\nACGTACGTACGTACGTACGTACGG\n"
	var sb strings.Builder
	if err := WriteCSV(&sb, strings.NewReader(fasta), Opts{Pam: "NGG", LegacyMode: true}); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	for _, line := range strings.Split(strings.TrimRight(sb.String(), "\n"), "\n") {
		cols := strings.Split(line, ",")
		if len(cols) != 5 {
			t.Fatalf("legacy CSV row has %d columns, want 5: %q", len(cols), line)
		}
		if cols[4] != "1" {
			t.Fatalf("legacy species_id column = %q, want 1", cols[4])
		}
	}
}

func TestWriteCSVNonLegacyFourColumns(t *testing.T) {
	fasta := ">chr1 dna:chromosome\nACGTACGTACGTACGTACGTACGG\n"
	var sb strings.Builder
	if err := WriteCSV(&sb, strings.NewReader(fasta), Opts{Pam: "NGG"}); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	for _, line := range strings.Split(strings.TrimRight(sb.String(), "\n"), "\n") {
		cols := strings.Split(line, ",")
		if len(cols) != 4 {
			t.Fatalf("non-legacy CSV row has %d columns, want 4: %q", len(cols), line)
		}
	}
}
