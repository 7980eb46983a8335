// Command guide-scan loads a binary guide index and answers an exact-match
// or off-target query against it from the command line.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/sanger-cellular-informatics/guide-index/scanner"
)

var (
	inputPath  = flag.String("i", "", "input binary guide index file")
	sequence   = flag.String("s", "", "the 20-nt guide sequence to search for")
	offTargets = flag.Bool("offtargets", false, "also report the off-target histogram and ID list")
	verbose    = flag.Bool("verbose", false, "log elapsed time for the load/scan phases")
)

func main() {
	shutdown := grail.Init()
	defer shutdown()

	if *inputPath == "" || *sequence == "" {
		log.Fatal("guide-scan: -i and -s are required")
	}

	ctx := context.Background()
	in, err := file.Open(ctx, *inputPath)
	if err != nil {
		panic(err.Error())
	}
	defer file.CloseAndReport(ctx, in, &err)

	var start time.Time
	if *verbose {
		start = time.Now()
	}
	s, err := scanner.LoadIndex(in.Reader(ctx))
	if err != nil {
		panic(err.Error())
	}
	if *verbose {
		log.Printf("guide-scan: loading took %s", time.Since(start))
	}

	printMetadata(s)
	log.Printf("Loaded %d sequences", len(s.Guides))

	if *verbose {
		start = time.Now()
	}
	matches := s.Search(*sequence)
	if *verbose {
		log.Printf("guide-scan: search took %s", time.Since(start))
	}
	log.Printf("Found %d exact matches", len(matches))
	log.Printf("Found the following matches:")
	for _, id := range matches {
		log.Printf("\t%d", uint64(id)+s.Meta.Offset)
	}

	if !*offTargets {
		return
	}
	result, err := s.OffTargets(ctx, *sequence, scanner.Opts{})
	if err != nil {
		panic(err.Error())
	}
	log.Printf("Off-target summary (distance 0..%d): %v", scanner.MaxDistance, result.Summary)
	for _, id := range result.IDs {
		log.Printf("\t%d", uint64(id)+s.Meta.Offset)
	}
}

func printMetadata(s *scanner.Scanner) {
	log.Printf("Assembly is %s (%s)", s.Meta.Assembly, s.Meta.SpeciesName)
	log.Printf("File has %d sequences", s.Meta.NSequences)
	log.Printf("Sequence length is %d", s.Meta.SequenceLength())
	log.Printf("Offset is %d", s.Meta.Offset)
	log.Printf("Species id is %d", s.Meta.SpeciesID)
}
