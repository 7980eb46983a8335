// Command guide-extract streams a reference FASTA file and writes every
// PAM-adjacent 20-mer it finds to a CSV file, for later consumption by
// guide-index.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/sanger-cellular-informatics/guide-index/extractor"
)

var (
	inputPath  = flag.String("i", "", "input reference FASTA file, optionally gzip-compressed")
	outputPath = flag.String("o", "", "output CSV file")
	pam        = flag.String("pam", "NGG", "PAM sequence to search for, e.g. NGG")
	legacy     = flag.Bool("legacy", false, "relax PAM matching and add a species_id column to the CSV")
	verbose    = flag.Bool("verbose", false, "log elapsed time for the extraction pass")
)

func main() {
	shutdown := grail.Init()
	defer shutdown()

	if *inputPath == "" || *outputPath == "" || *pam == "" {
		log.Fatal("guide-extract: -i, -o, and -pam are required")
	}

	ctx := context.Background()
	var start time.Time
	if *verbose {
		start = time.Now()
	}

	in, err := file.Open(ctx, *inputPath)
	if err != nil {
		panic(err.Error())
	}
	defer file.CloseAndReport(ctx, in, &err)

	src, err := extractor.Open(in.Reader(ctx))
	if err != nil {
		panic(err.Error())
	}

	out, err := file.Create(ctx, *outputPath)
	if err != nil {
		panic(err.Error())
	}
	defer file.CloseAndReport(ctx, out, &err)

	opts := extractor.Opts{Pam: *pam, LegacyMode: *legacy}
	if err = extractor.WriteCSV(out.Writer(ctx), src, opts); err != nil {
		panic(err.Error())
	}

	if *verbose {
		log.Printf("guide-extract: wrote %s in %s", *outputPath, time.Since(start))
	}
}
