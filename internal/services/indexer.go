package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"

	"github.com/Lllllllleong/pdftemplatefill/internal/gcp"
	"github.com/Lllllllleong/pdftemplatefill/internal/models"
	"github.com/Lllllllleong/pdftemplatefill/internal/registry"
)

// IndexerConfig holds the configuration of the template indexer.
type IndexerConfig struct {
	ProjectID        string
	WorkflowID       string
	WorkflowLocation string
}

// GCSEvent is the payload of a storage object finalized event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// IndexerFunction registers PDFs as they land in an uploads bucket and
// optionally hands the result to a workflow.
type IndexerFunction struct {
	registry *registry.Registry
	config   IndexerConfig
	fetch    func(ctx context.Context, bucket, object string) ([]byte, error)
	trigger  func(ctx context.Context, payload []byte) error
}

// NewIndexer builds the indexer from environment configuration.
func NewIndexer(ctx context.Context) (*IndexerFunction, error) {
	storageConfig, err := loadStorageConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	detectionConfig, err := loadDetectionConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	config := IndexerConfig{
		ProjectID:        gcp.GetEnv("PROJECT_ID", ""),
		WorkflowID:       gcp.GetEnv("WORKFLOW_ID", ""),
		WorkflowLocation: gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"),
	}
	if config.WorkflowID != "" && config.ProjectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set when WORKFLOW_ID is")
	}

	reg, storageClient, err := newRegistry(ctx, storageConfig, detectionConfig)
	if err != nil {
		return nil, err
	}
	if storageClient == nil {
		if storageClient, err = storage.NewClient(ctx); err != nil {
			return nil, fmt.Errorf("failed to create Storage client: %w", err)
		}
	}

	f := &IndexerFunction{registry: reg, config: config}
	f.fetch = func(ctx context.Context, bucket, object string) ([]byte, error) {
		return gcp.ReadObject(ctx, storageClient.Bucket(bucket), object)
	}
	if config.WorkflowID != "" {
		executionsClient, err := executions.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
		}
		f.trigger = func(ctx context.Context, payload []byte) error {
			_, err := executionsClient.CreateExecution(ctx, &executionspb.CreateExecutionRequest{
				Parent: fmt.Sprintf("projects/%s/locations/%s/workflows/%s", config.ProjectID, config.WorkflowLocation, config.WorkflowID),
				Execution: &executionspb.Execution{
					Argument: string(payload),
				},
			})
			return err
		}
	}
	slog.Info("Template indexer initialized.", "backend", storageConfig.Backend, "workflowId", config.WorkflowID)
	return f, nil
}

// Process registers the object named by e. Objects that are not PDFs are ignored.
func (f *IndexerFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if !strings.EqualFold(path.Ext(e.Name), ".pdf") {
		logCtx.Info("Ignoring non-PDF object.")
		return nil
	}
	logCtx.Info("Indexing new template.")

	data, err := f.fetch(ctx, e.Bucket, e.Name)
	if err != nil {
		logCtx.Error("Failed to download template", "error", err)
		return fmt.Errorf("failed to download gs://%s/%s: %w", e.Bucket, e.Name, err)
	}

	res, err := f.registry.Register(ctx, path.Base(e.Name), data)
	if err != nil {
		logCtx.Error("Failed to register template", "error", err)
		return err
	}
	logCtx = logCtx.With("templateId", res.Manifest.TemplateID)
	logCtx.Info("Template indexed.", "fields", len(res.Manifest.Fields), "cached", res.Cached)

	if f.trigger == nil {
		return nil
	}
	payload, err := json.Marshal(models.TemplateIndexedPayload{
		TemplateID: res.Manifest.TemplateID,
		FileName:   res.Manifest.FileName,
		FieldCount: len(res.Manifest.Fields),
		Cached:     res.Cached,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	if err := f.trigger(ctx, payload); err != nil {
		logCtx.Error("Failed to trigger workflow execution", "error", err)
		return fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	logCtx.Info("Hand-off to workflow complete.")
	return nil
}
