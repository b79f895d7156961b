package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/pdftemplatefill/internal/services"
)

var (
	indexerInstance *services.IndexerFunction
	once            sync.Once
	initErr         error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("IndexTemplate", indexTemplate)
}

// main is required by the Go Functions Framework.
func main() {}

// indexTemplate is the Cloud Function entry point for finalized upload objects.
func indexTemplate(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		indexerInstance, initErr = services.NewIndexer(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent services.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// Errors are logged with context inside Process; returning one marks
	// the invocation as failed so the event is retried.
	return indexerInstance.Process(ctx, gcsEvent)
}
