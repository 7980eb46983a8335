// Command guide-index reads one or more CSV files produced by
// guide-extract and writes a binary guide index.
package main

import (
	"context"
	"flag"
	"io"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/sanger-cellular-informatics/guide-index/indexer"
)

var (
	inputPaths  = flag.String("i", "", "comma-separated list of input CSV files, in guide-ID order")
	outputPath  = flag.String("o", "", "output binary index file")
	legacy      = flag.Bool("legacy", false, "expect a trailing species_id column on every CSV row")
	pamLen      = flag.Int("pam-len", 3, "length of the PAM used to produce the CSV input")
	offset      = flag.Uint64("offset", 0, "base offset added to in-shard IDs by downstream consumers")
	speciesID   = flag.Uint("species-id", 0, "numeric species identifier stored in the index metadata")
	speciesName = flag.String("species-name", "", "species name stored in the index metadata (max 30 bytes)")
	assembly    = flag.String("assembly", "", "assembly name stored in the index metadata (max 30 bytes)")
)

func main() {
	shutdown := grail.Init()
	defer shutdown()

	if *inputPaths == "" || *outputPath == "" {
		log.Fatal("guide-index: -i and -o are required")
	}

	ctx := context.Background()
	paths := strings.Split(*inputPaths, ",")
	sources := make([]io.Reader, len(paths))
	for i, p := range paths {
		f, err := file.Open(ctx, p)
		if err != nil {
			panic(err.Error())
		}
		sources[i] = f.Reader(ctx)
	}

	meta := indexer.Metadata{
		Offset:      *offset,
		SpeciesID:   uint8(*speciesID),
		SpeciesName: *speciesName,
		Assembly:    *assembly,
	}
	guides, err := indexer.Build(sources, indexer.Opts{
		LegacyMode: *legacy,
		PamLen:     *pamLen,
		Metadata:   meta,
	})
	if err != nil {
		panic(err.Error())
	}

	out, err := file.Create(ctx, *outputPath)
	if err != nil {
		panic(err.Error())
	}
	defer file.CloseAndReport(ctx, out, &err)

	if err = indexer.WriteIndex(out.Writer(ctx), guides, meta); err != nil {
		panic(err.Error())
	}
	log.Printf("guide-index: wrote %d guides to %s", len(guides), *outputPath)
}
