// Command guide-server loads every binary index file in a directory and
// serves exact-match and off-target queries against them over HTTP, one
// shard per file (shard name = file name without its extension).
package main

import (
	"context"
	"flag"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/sanger-cellular-informatics/guide-index/scanner"
	"github.com/sanger-cellular-informatics/guide-index/server"
)

var (
	shardDir  = flag.String("shard-dir", "", "directory containing one binary index file per shard")
	addr      = flag.String("addr", ":8080", "address to listen on")
	redisAddr = flag.String("redis-addr", "", "optional Redis address for caching off-target results")
)

func main() {
	shutdown := grail.Init()
	defer shutdown()

	if *shardDir == "" {
		log.Fatal("guide-server: -shard-dir is required")
	}

	ctx := context.Background()
	shards, err := loadShards(ctx, *shardDir)
	if err != nil {
		panic(err.Error())
	}
	log.Printf("guide-server: loaded %d shards from %s", len(shards), *shardDir)

	srv := server.New(shards, *redisAddr)
	router := mux.NewRouter()
	srv.RegisterRoutes(router)

	log.Printf("guide-server: listening on %s", *addr)
	if err := http.ListenAndServe(*addr, router); err != nil {
		panic(err.Error())
	}
}

func loadShards(ctx context.Context, dir string) (map[string]*scanner.Scanner, error) {
	shards := make(map[string]*scanner.Scanner)
	lister := file.List(ctx, dir)
	for lister.Scan() {
		path := lister.Path()
		f, err := file.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		sc, err := scanner.LoadIndex(f.Reader(ctx))
		if cerr := f.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			return nil, err
		}
		name := filepath.Base(path)
		name = strings.TrimSuffix(name, filepath.Ext(name))
		shards[name] = sc
	}
	if err := lister.Err(); err != nil {
		return nil, err
	}
	return shards, nil
}
