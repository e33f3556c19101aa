package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sliink/relay/internal/api"
	"github.com/sliink/relay/internal/core"
	"github.com/sliink/relay/internal/plugin/standard"
	"github.com/spf13/cobra"
)

// Environment variables providing defaults for the scoring flags
const (
	EnvServiceURL = "RELAY_SERVICE_URL"
	EnvPMMLFile   = "RELAY_PMML_FILE"
)

const apiShutdownTimeout = 5 * time.Second

type options struct {
	configFile string
	inputFile  string
	outputDir  string
	stdout     bool
	colorize   bool
	jsonFormat bool
	serviceURL string
	pmmlFile   string
	apiEnabled bool
	apiPort    int
	apiHost    string
	logLevel   string
	envFile    string

	logger *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "relay",
		Short:         "Scoring Relay - Route records through an Openscoring service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.prepare(cmd.ErrOrStderr())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelay(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	// Common flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "Path to configuration file (JSON or YAML)")
	flags.StringVar(&opts.inputFile, "input-file", "", "Watch a file or glob pattern for records")
	flags.StringVar(&opts.outputDir, "output-dir", "", "Output directory for file output")
	flags.BoolVar(&opts.stdout, "stdout", false, "Write records to stdout")
	flags.BoolVar(&opts.colorize, "color", false, "Colorize stdout output")
	flags.BoolVar(&opts.jsonFormat, "json", false, "Write stdout output in JSON format")
	flags.StringVar(&opts.serviceURL, "service-url", "", "Openscoring service URL (default $"+EnvServiceURL+")")
	flags.StringVar(&opts.pmmlFile, "pmml-file", "", "PMML model file (default $"+EnvPMMLFile+")")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	flags.StringVar(&opts.envFile, "env-file", ".env", "Environment file to load")

	// API server flags
	rootCmd.Flags().BoolVar(&opts.apiEnabled, "api", true, "Enable the API server")
	rootCmd.Flags().IntVar(&opts.apiPort, "api-port", 8080, "API server port")
	rootCmd.Flags().StringVar(&opts.apiHost, "api-host", "localhost", "API server host")

	rootCmd.AddCommand(newScoreCmd(opts))
	return rootCmd
}

// prepare loads the environment file, fills scoring defaults from the
// environment and builds the logger
func (o *options) prepare(logOut io.Writer) error {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", o.envFile, err)
		}
	}
	if o.serviceURL == "" {
		o.serviceURL = os.Getenv(EnvServiceURL)
	}
	if o.pmmlFile == "" {
		o.pmmlFile = os.Getenv(EnvPMMLFile)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
		return fmt.Errorf("invalid log level %q", o.logLevel)
	}
	o.logger = slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))
	return nil
}

func runRelay(ctx context.Context, out io.Writer, opts *options) error {
	logger := opts.logger
	logger.Info("starting scoring relay")

	c, err := setupCore(opts, true)
	if err != nil {
		return err
	}

	if !c.Start() {
		c.Stop()
		return errors.New("failed to start core system")
	}
	fmt.Fprintln(out, "Relay is running. Press Ctrl+C to stop.")

	var apiServer *api.API
	if opts.apiEnabled {
		apiServer = api.NewAPI(c, opts.apiPort, opts.apiHost)
		go func() {
			logger.Info("starting API server", "addr", apiServer.Addr())
			if err := apiServer.Start(); err != nil {
				logger.Error("API server error", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	if apiServer != nil {
		logger.Info("shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), apiShutdownTimeout)
		defer cancel()
		if err := apiServer.Stop(shutdownCtx); err != nil {
			logger.Error("API server shutdown error", "error", err)
		}
	}

	logger.Info("shutting down")
	if !c.Stop() {
		return errors.New("failed to stop core system cleanly")
	}
	logger.Info("shutdown complete")
	return nil
}

// setupCore creates the core, loads the configuration document, applies the
// flag overrides and registers the resulting plugins
func setupCore(opts *options, withInputs bool) (*core.Core, error) {
	c := core.NewCore()
	c.SetLogger(opts.logger)
	if !c.Initialize() {
		return nil, errors.New("failed to initialize core system")
	}

	configManager := c.GetConfigManager()
	if opts.configFile != "" {
		if err := configManager.LoadConfig(opts.configFile); err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		opts.logger.Info("loaded configuration", "file", opts.configFile)
	}

	doc, _ := configManager.GetConfig("", nil).(map[string]interface{})
	doc = buildDocument(doc, opts, withInputs)
	if err := configManager.SetConfig("", doc); err != nil {
		return nil, err
	}
	doc, _ = configManager.GetConfig("", nil).(map[string]interface{})

	if section, ok := doc["core"].(map[string]interface{}); ok {
		if !c.Configure(section) {
			return nil, errors.New("invalid core configuration")
		}
	}

	plugins, err := standard.CreateStandardPlugins(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create plugins: %w", err)
	}
	for _, p := range plugins {
		if err := c.RegisterPlugin(p); err != nil {
			return nil, fmt.Errorf("failed to register plugins: %w", err)
		}
	}

	if err := c.ConfigureFlow(doc); err != nil {
		return nil, err
	}
	return c, nil
}
