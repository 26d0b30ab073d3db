// Command tasklens-fs mounts a single document as a read-only FUSE
// filesystem, grounded on the teacher's cmd/linear-fuse/commands/mount.go
// (flag parsing plus Ctrl+C-triggered unmount); narrowed to a single flag
// set since the filesystem has nothing to configure but the mountpoint,
// store path, and document id.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tasklens/tasklens/internal/cache"
	"github.com/tasklens/tasklens/internal/config"
	"github.com/tasklens/tasklens/internal/fsview"
	"github.com/tasklens/tasklens/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tasklens-fs:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		docID    = flag.String("doc", "default", "document id to mount")
		dbPath   = flag.String("store", "", "path to the document store (defaults to config)")
		debug    = flag.Bool("debug", false, "enable FUSE debug logging")
		cacheTTL = flag.Duration("cache-ttl", 0, "projection cache TTL (defaults to config)")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <mountpoint>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	mountpoint := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	path := *dbPath
	if path == "" {
		path = cfg.Store.Path
	}
	s, err := store.Open(path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	ttl := *cacheTTL
	if ttl <= 0 {
		ttl = cfg.Cache.TTL
	}
	projections := cache.NewProjections(ttl)
	defer projections.Stop()

	tlfs := fsview.New(s, *docID, projections, uint32(os.Getuid()), uint32(os.Getgid()))

	server, err := fsview.Mount(mountpoint, tlfs, *debug)
	if err != nil {
		return fmt.Errorf("mount: %w", err)
	}

	log.Printf("mounted %s at %s", *docID, mountpoint)
	log.Printf("press Ctrl+C to unmount")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Printf("unmounting...")
	if err := server.Unmount(); err != nil {
		return fmt.Errorf("unmount: %w", err)
	}
	log.Printf("unmounted")
	return nil
}
