// Package app builds the long-lived services a check needs from the loaded
// configuration and tears them down afterwards.
package app

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/cagewatch/internal/artifact"
	"github.com/JakeFAU/cagewatch/internal/checker"
	"github.com/JakeFAU/cagewatch/internal/config"
	"github.com/JakeFAU/cagewatch/internal/fetcher"
	"github.com/JakeFAU/cagewatch/internal/fetcher/auto"
	collyfetcher "github.com/JakeFAU/cagewatch/internal/fetcher/colly"
	"github.com/JakeFAU/cagewatch/internal/fetcher/headless"
	"github.com/JakeFAU/cagewatch/internal/headless/detector"
	"github.com/JakeFAU/cagewatch/internal/metrics"
	pubsubpublisher "github.com/JakeFAU/cagewatch/internal/publisher/pubsub"
	"github.com/JakeFAU/cagewatch/internal/state"
	"github.com/JakeFAU/cagewatch/internal/storage/gcs"
	"github.com/JakeFAU/cagewatch/internal/storage/local"
)

// ClientFactory creates the Google Cloud clients used by the optional sidecars.
type ClientFactory interface {
	NewStorageClient(ctx context.Context) (*storage.Client, error)
	NewPubSubClient(ctx context.Context, projectID string) (*pubsub.Client, error)
}

// DefaultClientFactory uses application default credentials.
type DefaultClientFactory struct{}

// NewStorageClient creates a Cloud Storage client.
func (DefaultClientFactory) NewStorageClient(ctx context.Context) (*storage.Client, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return client, nil
}

// NewPubSubClient creates a Pub/Sub client for projectID.
func (DefaultClientFactory) NewPubSubClient(ctx context.Context, projectID string) (*pubsub.Client, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return client, nil
}

// App holds the services shared by one check run.
type App struct {
	Fetcher   fetcher.Fetcher
	State     state.Store
	Artifacts *artifact.Recorder
	Publisher checker.Publisher
	Metrics   *metrics.Recorder

	logger   *zap.Logger
	closers  []namedCloser
	mirrored bool
}

type namedCloser struct {
	name string
	fn   func() error
}

// New builds every service named by cfg. On error, whatever was already
// created is released before returning. Optional sidecars that cannot be
// reached are skipped with a warning instead.
func New(ctx context.Context, cfg config.Config, runID string, factory ClientFactory, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if factory == nil {
		factory = DefaultClientFactory{}
	}
	a := &App{logger: logger, Metrics: metrics.New()}

	if err := a.initFetcher(cfg); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initState(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initArtifacts(ctx, cfg, runID, factory); err != nil {
		a.Close()
		return nil, err
	}
	a.initPublisher(ctx, cfg, factory)

	logger.Info("application services initialized",
		zap.String("fetcher", cfg.Fetcher.Mode),
		zap.String("state_backend", cfg.State.Backend),
		zap.Bool("gcs_mirror", a.mirrored),
		zap.Bool("pubsub", a.Publisher != nil),
	)
	return a, nil
}

func (a *App) initFetcher(cfg config.Config) error {
	mode := fetcher.Mode(cfg.Fetcher.Mode)
	if mode == fetcher.ModeStatic {
		a.logger.Info("using static fetcher; client-side rendering is skipped")
		a.Fetcher = newStaticFetcher(cfg)
		return nil
	}

	browser, err := headless.NewChromedp(headless.Config{
		UserAgent:         cfg.Fetcher.UserAgent,
		NavigationTimeout: cfg.NavigationTimeout(),
		RenderDelay:       cfg.RenderDelay(),
		ExtractTimeout:    cfg.ExtractTimeout(),
		ViewportWidth:     cfg.Fetcher.ViewportWidth,
		ViewportHeight:    cfg.Fetcher.ViewportHeight,
		Screenshot:        cfg.Fetcher.Screenshot,
		ExecPath:          cfg.Fetcher.ChromePath,
	})
	if err != nil {
		return fmt.Errorf("init headless fetcher: %w", err)
	}
	a.addCloser("browser", func() error {
		browser.Close()
		return nil
	})

	if mode != fetcher.ModeAuto {
		a.Fetcher = browser
		return nil
	}
	f, err := auto.New(newStaticFetcher(cfg), browser, detector.NewHeuristic(0, 0), a.logger)
	if err != nil {
		return fmt.Errorf("init auto fetcher: %w", err)
	}
	a.logger.Info("using auto fetcher; headless only for client-rendered pages")
	a.Fetcher = f
	return nil
}

func newStaticFetcher(cfg config.Config) *collyfetcher.Fetcher {
	ua := cfg.Fetcher.UserAgent
	if ua == "" {
		ua = headless.DefaultUserAgent
	}
	return collyfetcher.New(collyfetcher.Config{
		UserAgent: ua,
		Timeout:   cfg.NavigationTimeout(),
	})
}

func (a *App) initState(ctx context.Context, cfg config.Config) error {
	switch cfg.State.Backend {
	case config.BackendPostgres:
		a.logger.Info("connecting to PostgreSQL for keyword state", zap.String("table", cfg.State.Table))
		store, err := state.NewPostgresStore(ctx, state.PostgresConfig{
			DSN:   cfg.State.DSN,
			Table: cfg.State.Table,
			Key:   cfg.State.Key,
		})
		if err != nil {
			return fmt.Errorf("init postgres state: %w", err)
		}
		a.State = store
		a.addCloser("postgres", func() error {
			store.Close()
			return nil
		})
	default:
		store, err := state.NewFileStore(cfg.State.Path)
		if err != nil {
			return fmt.Errorf("init file state: %w", err)
		}
		a.State = store
	}
	return nil
}

func (a *App) initArtifacts(ctx context.Context, cfg config.Config, runID string, factory ClientFactory) error {
	primary, err := local.New(local.Config{BaseDir: cfg.Data.Dir})
	if err != nil {
		return fmt.Errorf("init data dir: %w", err)
	}
	opts := []artifact.Option{artifact.WithSampleBytes(cfg.Data.SampleBytes)}

	if cfg.Storage.GCSBucket != "" {
		if mirror := a.newMirror(ctx, cfg, factory); mirror != nil {
			opts = append(opts, artifact.WithMirror(mirror))
		}
	}

	recorder, err := artifact.NewRecorder(primary, runID, a.logger, opts...)
	if err != nil {
		return fmt.Errorf("init artifact recorder: %w", err)
	}
	a.Artifacts = recorder
	return nil
}

// newMirror returns nil when the bucket cannot be reached; the run then
// keeps its artifacts locally only.
func (a *App) newMirror(ctx context.Context, cfg config.Config, factory ClientFactory) *gcs.BlobStore {
	client, err := factory.NewStorageClient(ctx)
	if err != nil {
		a.logger.Warn("GCS mirror disabled for this run", zap.String("bucket", cfg.Storage.GCSBucket), zap.Error(err))
		return nil
	}
	a.addCloser("storage client", client.Close)
	mirror, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket, Prefix: cfg.Storage.Prefix})
	if err != nil {
		a.logger.Warn("GCS mirror disabled for this run", zap.String("bucket", cfg.Storage.GCSBucket), zap.Error(err))
		return nil
	}
	a.logger.Info("mirroring artifacts to GCS", zap.String("bucket", cfg.Storage.GCSBucket))
	a.mirrored = true
	return mirror
}

// initPublisher leaves Publisher nil when the Pub/Sub client cannot be
// created, so the check still emits its outputs.
func (a *App) initPublisher(ctx context.Context, cfg config.Config, factory ClientFactory) {
	if cfg.PubSub.TopicName == "" {
		return
	}
	client, err := factory.NewPubSubClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		a.logger.Warn("Pub/Sub notifications disabled for this run", zap.String("topic", cfg.PubSub.TopicName), zap.Error(err))
		return
	}
	a.addCloser("pubsub client", client.Close)

	pub := pubsubpublisher.New(client.Topic(cfg.PubSub.TopicName))
	a.addCloser("pubsub topic", func() error {
		pub.Stop()
		return nil
	})
	a.logger.Info("publishing notifications to Pub/Sub", zap.String("topic", cfg.PubSub.TopicName))
	a.Publisher = pub
}

func (a *App) addCloser(name string, fn func() error) {
	a.closers = append(a.closers, namedCloser{name: name, fn: fn})
}

// Close releases services in reverse creation order. Failures are logged.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.logger.Warn("error closing service", zap.String("service", c.name), zap.Error(err))
		}
	}
	a.closers = nil
}
