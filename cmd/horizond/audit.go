package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/starquake/horizon/internal/audit"
	"github.com/starquake/horizon/internal/objectstore"
	s3store "github.com/starquake/horizon/internal/objectstore/s3"
)

// listAudit prints one line per archived batch.
func listAudit(ctx context.Context, w io.Writer, store objectstore.Store, prefix, archiveID string) error {
	objs, err := audit.ListObjects(ctx, store, prefix, archiveID)
	if err != nil {
		return err
	}
	for _, o := range objs {
		modified := time.UnixMilli(o.LastModified).UTC().Format(time.RFC3339)
		if _, err := fmt.Fprintf(w, "%s\t%d\t%s\n", modified, o.Size, o.Key); err != nil {
			return err
		}
	}
	return nil
}

// catAudit prints the events of one batch as JSON lines.
func catAudit(ctx context.Context, w io.Writer, store objectstore.Store, key string) error {
	evs, err := audit.ReadObject(ctx, store, key)
	if err != nil {
		return err
	}
	for _, e := range evs {
		line, err := e.Marshal()
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s\n", line); err != nil {
			return err
		}
	}
	return nil
}

func runAudit(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	archiveID := fs.String("archive-id", "", "Archive whose events to list (default: archive.archiveId)")
	key := fs.String("key", "", "Print the events of this object instead of listing")

	fs.Usage = func() {
		fmt.Println(`Usage: horizond audit [options]

List the archived tick event batches of an archive, or print the events
of one batch as JSON lines with -key.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	if cfg.Audit.Bucket == "" {
		fmt.Fprintln(os.Stderr, "audit archive is not configured: set audit.bucket")
		os.Exit(1)
	}
	if *archiveID == "" {
		*archiveID = cfg.Archive.ArchiveID
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, err := s3store.New(ctx, s3store.Config{
		Bucket:          cfg.Audit.Bucket,
		Region:          cfg.Audit.Region,
		Endpoint:        cfg.Audit.Endpoint,
		AccessKeyID:     cfg.Audit.AccessKey,
		SecretAccessKey: cfg.Audit.SecretKey,
		UsePathStyle:    cfg.Audit.UsePathStyle,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect audit store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *key != "" {
		err = catAudit(ctx, os.Stdout, store, *key)
	} else {
		err = listAudit(ctx, os.Stdout, store, cfg.Audit.Prefix, *archiveID)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
