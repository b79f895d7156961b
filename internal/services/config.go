package services

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/pdftemplatefill/internal/calc"
	"github.com/Lllllllleong/pdftemplatefill/internal/filler"
	"github.com/Lllllllleong/pdftemplatefill/internal/gcp"
	"github.com/Lllllllleong/pdftemplatefill/internal/markers"
	"github.com/Lllllllleong/pdftemplatefill/internal/registry"
)

// Storage backends selectable with STORAGE_BACKEND.
const (
	BackendLocal = "local"
	BackendGCS   = "gcs"
	BackendRedis = "redis"
)

// StorageConfig selects where templates and manifests live.
type StorageConfig struct {
	Backend            string
	Root               string
	ProjectID          string
	TemplatesBucket    string
	ManifestCollection string
	FirestoreDatabase  string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
}

func loadStorageConfig() (*StorageConfig, error) {
	redisDB, err := gcp.GetEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	c := &StorageConfig{
		Backend:            gcp.GetEnv("STORAGE_BACKEND", BackendLocal),
		Root:               gcp.GetEnv("STORAGE_ROOT", "storage"),
		ProjectID:          gcp.GetEnv("PROJECT_ID", ""),
		TemplatesBucket:    gcp.GetEnv("TEMPLATES_BUCKET", ""),
		ManifestCollection: gcp.GetEnv("MANIFEST_COLLECTION", "templateManifests"),
		FirestoreDatabase:  gcp.GetEnv("FIRESTORE_DATABASE", ""),
		RedisAddr:          gcp.GetEnv("REDIS_ADDR", ""),
		RedisPassword:      gcp.GetEnv("REDIS_PASSWORD", ""),
		RedisDB:            redisDB,
	}
	switch c.Backend {
	case BackendLocal:
	case BackendGCS:
		if c.ProjectID == "" {
			return nil, fmt.Errorf("PROJECT_ID environment variable must be set for the gcs backend")
		}
		if c.TemplatesBucket == "" {
			return nil, fmt.Errorf("TEMPLATES_BUCKET environment variable must be set for the gcs backend")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR environment variable must be set for the redis backend")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", c.Backend)
	}
	return c, nil
}

// DetectionConfig tunes marker detection.
type DetectionConfig struct {
	Gap float64
}

func loadDetectionConfig() (*DetectionConfig, error) {
	gap, err := gcp.GetEnvFloat("MARKER_GAP", markers.DefaultGap)
	if err != nil {
		return nil, err
	}
	if gap <= 0 {
		return nil, fmt.Errorf("MARKER_GAP must be positive, got %v", gap)
	}
	return &DetectionConfig{Gap: gap}, nil
}

// FillConfig holds the fill defaults and the font cascade.
type FillConfig struct {
	FontSize    float64
	Fonts       filler.FontConfig
	Calculation calc.Options
}

func loadFillConfig() (*FillConfig, error) {
	fontSize, err := gcp.GetEnvFloat("FILL_FONT_SIZE", filler.DefaultFontSize)
	if err != nil {
		return nil, err
	}
	if fontSize <= 0 {
		return nil, fmt.Errorf("FILL_FONT_SIZE must be positive, got %v", fontSize)
	}
	def := calc.DefaultOptions()
	multiplier, err := gcp.GetEnvFloat("HOURLY_MULTIPLIER", def.HourlyMultiplier)
	if err != nil {
		return nil, err
	}
	divisor, err := gcp.GetEnvFloat("SECONDLY_DIVISOR", def.SecondlyDivisor)
	if err != nil {
		return nil, err
	}
	precision, err := gcp.GetEnvInt("CALCULATION_PRECISION", *def.Precision)
	if err != nil {
		return nil, err
	}
	return &FillConfig{
		FontSize: fontSize,
		Fonts: filler.FontConfig{
			OverridePath: gcp.GetEnv("TEMPLATE_FONT_PATH", ""),
			BundledPath:  gcp.GetEnv("TEMPLATE_BUNDLED_FONT_PATH", "assets/fonts/DejaVuSans.ttf"),
			CacheDir:     gcp.GetEnv("TEMPLATE_FONT_CACHE_DIR", ""),
		},
		Calculation: calc.Options{HourlyMultiplier: multiplier, SecondlyDivisor: divisor, Precision: &precision},
	}, nil
}

// newRegistry builds the stores of cfg.Backend. The returned storage
// client is non-nil for the gcs backend and may be reused by the caller.
func newRegistry(ctx context.Context, cfg *StorageConfig, det *DetectionConfig) (*registry.Registry, *storage.Client, error) {
	detector := markers.NewDetector(markers.Options{Gap: det.Gap})

	switch cfg.Backend {
	case BackendGCS:
		storageClient, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Storage client: %w", err)
		}
		firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID, cfg.FirestoreDatabase)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		templates := registry.NewGCSTemplateStore(storageClient, cfg.TemplatesBucket, nil)
		manifests := registry.NewFirestoreManifestStore(firestoreClient, cfg.ManifestCollection)
		slog.Info("Using GCS templates and Firestore manifests.", "bucket", cfg.TemplatesBucket, "collection", cfg.ManifestCollection)
		return registry.New(templates, manifests, detector, nil), storageClient, nil

	case BackendRedis:
		files, err := registry.NewFileStore(cfg.Root, nil)
		if err != nil {
			return nil, nil, err
		}
		client, err := gcp.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Using local templates and Redis manifests.", "root", cfg.Root, "redisAddr", cfg.RedisAddr)
		return registry.New(files, registry.NewRedisManifestStore(client, ""), detector, nil), nil, nil

	default:
		files, err := registry.NewFileStore(cfg.Root, nil)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Using local template storage.", "root", cfg.Root)
		return registry.New(files, files, detector, nil), nil, nil
	}
}
