package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/cagewatch/internal/app"
	"github.com/JakeFAU/cagewatch/internal/checker"
	"github.com/JakeFAU/cagewatch/internal/clock/system"
	"github.com/JakeFAU/cagewatch/internal/config"
	"github.com/JakeFAU/cagewatch/internal/hash/sha256"
	"github.com/JakeFAU/cagewatch/internal/keyword"
	"github.com/JakeFAU/cagewatch/internal/logging"
	"github.com/JakeFAU/cagewatch/internal/output"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check the target page once and emit notify/message outputs",
		Long: `Loads the configured page, matches the keyword vocabulary against its
visible text and compares the result with the previous run. A failed fetch
still exits 0 with notify=false; only configuration problems are fatal.`,
		Args: cobra.NoArgs,
		RunE: runCheck,
	}
}

func runCheck(cmd *cobra.Command, _ []string) (err error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	clock := system.New()
	logger, closeLog, err := logging.NewWithDebugFile(cfg.Logging.Development, cfg.Logging.File, clock.Now())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		if cerr := closeLog(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	runID, err := idGenerator.NewID()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}
	logger = logger.With(zap.String("run_id", runID))

	ctx := cmd.Context()
	services, err := app.New(ctx, cfg, runID, clientFactory, logger)
	if err != nil {
		return fmt.Errorf("initialize services: %w", err)
	}
	defer func() {
		logger.Info("closing services")
		services.Close()
	}()

	c, err := checker.New(checker.Config{
		RunID:           runID,
		URL:             cfg.Target.URL,
		Vocabulary:      keyword.DefaultVocabulary,
		Topic:           cfg.PubSub.TopicName,
		MetricsTextfile: cfg.Metrics.Textfile,
	}, checker.Deps{
		Fetcher:   services.Fetcher,
		State:     services.State,
		Artifacts: services.Artifacts,
		Output:    output.New(cfg.Output.Path, cmd.OutOrStdout()),
		Publisher: services.Publisher,
		Metrics:   services.Metrics,
		Hasher:    sha256.New(),
		Clock:     clock,
	}, logger)
	if err != nil {
		return fmt.Errorf("build checker: %w", err)
	}

	res, err := c.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("check finished", zap.Bool("notify", res.Notify), zap.String("message", res.Message))
	return nil
}
