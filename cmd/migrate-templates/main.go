// Command migrate-templates renames locally stored templates to their
// canonical content-addressed names and backfills storageFileName on
// their manifests.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"

	"github.com/Lllllllleong/pdftemplatefill/internal/gcp"
	"github.com/Lllllllleong/pdftemplatefill/internal/registry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	root := flag.String("root", gcp.GetEnv("STORAGE_ROOT", "storage"), "storage root holding manifests/ and templates/")
	flag.Parse()

	store, err := registry.NewFileStore(*root, logger)
	if err != nil {
		slog.Error("Failed to open storage", "root", *root, "error", err)
		os.Exit(1)
	}
	report, err := store.Migrate(context.Background())
	if err != nil {
		slog.Error("Migration failed", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		slog.Error("Failed to write report", "error", err)
		os.Exit(1)
	}
}
