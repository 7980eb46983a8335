// Command guide-merge combines guides from one or more binary indexes and
// redistributes them across a configurable number of output shards,
// bucketing each guide by indexer.ShardKey so that re-sharding a corpus
// does not require re-running the indexer.
package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/sanger-cellular-informatics/guide-index/indexer"
	"github.com/sanger-cellular-informatics/guide-index/scanner"
)

var (
	inputPaths  = flag.String("i", "", "comma-separated list of input binary index files to merge")
	outputPfx   = flag.String("o-prefix", "", "output path prefix; shard i is written to <prefix>-<i>.bin")
	numShards   = flag.Int("shards", 1, "number of output shards to redistribute guides across")
	speciesID   = flag.Uint("species-id", 0, "species_id stored in each output shard's metadata")
	speciesName = flag.String("species-name", "", "species_name stored in each output shard's metadata")
	assembly    = flag.String("assembly", "", "assembly stored in each output shard's metadata")
)

func main() {
	shutdown := grail.Init()
	defer shutdown()

	if *inputPaths == "" || *outputPfx == "" || *numShards < 1 {
		log.Fatal("guide-merge: -i and -o-prefix are required, -shards must be >= 1")
	}

	ctx := context.Background()
	var all []uint64
	for _, p := range strings.Split(*inputPaths, ",") {
		f, err := file.Open(ctx, p)
		if err != nil {
			panic(err.Error())
		}
		s, err := scanner.LoadIndex(f.Reader(ctx))
		if err != nil {
			panic(err.Error())
		}
		all = append(all, s.Guides...)
		if err := f.Close(ctx); err != nil {
			panic(err.Error())
		}
	}
	log.Printf("guide-merge: loaded %d guides from %d input shards", len(all), len(strings.Split(*inputPaths, ",")))

	buckets := make([][]uint64, *numShards)
	for _, g := range all {
		b := indexer.ShardKey(g) % uint64(*numShards)
		buckets[b] = append(buckets[b], g)
	}

	for i, bucket := range buckets {
		outPath := fmt.Sprintf("%s-%d.bin", *outputPfx, i)
		out, err := file.Create(ctx, outPath)
		if err != nil {
			panic(err.Error())
		}
		meta := indexer.Metadata{
			SpeciesID:   uint8(*speciesID),
			SpeciesName: *speciesName,
			Assembly:    *assembly,
		}
		if err := indexer.WriteIndex(out.Writer(ctx), bucket, meta); err != nil {
			panic(err.Error())
		}
		if err := out.Close(ctx); err != nil {
			panic(err.Error())
		}
		log.Printf("guide-merge: wrote %d guides to shard %s", len(bucket), outPath)
	}
}
