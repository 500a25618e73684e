package di

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ca-srg/copilot-exporter/domain"
	"github.com/ca-srg/copilot-exporter/domain/repository"
	"github.com/ca-srg/copilot-exporter/infrastructure/config"
	"github.com/ca-srg/copilot-exporter/infrastructure/logging"
	infraRepo "github.com/ca-srg/copilot-exporter/infrastructure/repository"
	"github.com/ca-srg/copilot-exporter/interface/controller"
	"github.com/ca-srg/copilot-exporter/interface/presenter"
	"github.com/ca-srg/copilot-exporter/usecase/impl"
	usecase "github.com/ca-srg/copilot-exporter/usecase/interface"
)

// Container is the dependency injection container
type Container struct {
	// Configuration
	config     *config.AppConfig
	configRepo repository.ConfigRepository

	// Repositories
	usageRepo     repository.CopilotUsageRepository
	gaugeRegistry *infraRepo.PrometheusGaugeRegistry
	metricsPusher repository.MetricsPusher

	// Use Cases
	statusService usecase.StatusService
	usagePoller   usecase.UsagePoller

	// Presenters
	consolePresenter presenter.PollPresenter
	jsonPresenter    presenter.PollPresenter

	// Controllers
	httpController *controller.HTTPController

	// Logging
	loggerFactory *logging.LoggerFactoryImpl
	logger        domain.Logger

	// Options
	debugMode     bool
	configPath    string
	dotEnvPaths   []string
	listenAddress string
	output        io.Writer
}

// ContainerOption is a function that configures the container
type ContainerOption func(*Container)

// WithDebugMode sets the debug mode
func WithDebugMode(debug bool) ContainerOption {
	return func(c *Container) {
		c.debugMode = debug
	}
}

// WithConfigPath sets the JSON configuration file path
func WithConfigPath(path string) ContainerOption {
	return func(c *Container) {
		c.configPath = path
	}
}

// WithDotEnv sets the .env files loaded before reading the environment
func WithDotEnv(paths ...string) ContainerOption {
	return func(c *Container) {
		c.dotEnvPaths = paths
	}
}

// WithListenAddress overrides the configured listen address
func WithListenAddress(addr string) ContainerOption {
	return func(c *Container) {
		c.listenAddress = addr
	}
}

// WithOutput sets the writer used by the presenters
func WithOutput(w io.Writer) ContainerOption {
	return func(c *Container) {
		c.output = w
	}
}

// WithConfig uses cfg as is instead of loading files and environment
func WithConfig(cfg *config.AppConfig) ContainerOption {
	return func(c *Container) {
		c.config = cfg
	}
}

// NewContainer creates a new DI container
func NewContainer(opts ...ContainerOption) (*Container, error) {
	container := &Container{
		dotEnvPaths: []string{".env"},
		output:      os.Stdout,
	}

	// Apply options
	for _, opt := range opts {
		opt(container)
	}

	// Load configuration
	if err := container.initConfig(); err != nil {
		return nil, fmt.Errorf("failed to initialize config: %w", err)
	}

	// Initialize logging
	if err := container.initLogging(); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	// Initialize repositories
	if err := container.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	// Initialize use cases
	if err := container.initUseCases(); err != nil {
		return nil, fmt.Errorf("failed to initialize use cases: %w", err)
	}

	// Initialize presenters
	if err := container.initPresenters(); err != nil {
		return nil, fmt.Errorf("failed to initialize presenters: %w", err)
	}

	// Initialize controllers
	if err := container.initControllers(); err != nil {
		return nil, fmt.Errorf("failed to initialize controllers: %w", err)
	}

	return container, nil
}

// initConfig initializes configuration
func (c *Container) initConfig() error {
	if c.config == nil {
		cfg := config.DefaultConfig()

		c.configRepo = infraRepo.NewJSONConfigRepository(c.configPath)
		if _, err := c.configRepo.LoadInto(cfg); err != nil {
			return err
		}

		if err := config.LoadDotEnv(c.dotEnvPaths...); err != nil {
			return err
		}
		if err := cfg.LoadFromEnv(); err != nil {
			return err
		}

		c.config = cfg
	}

	// Command line flags take precedence over every other source
	before := c.config.Snapshot()
	if c.listenAddress != "" {
		c.config.Server.ListenAddress = c.listenAddress
	}
	if c.debugMode {
		c.config.Logging.Debug = true
	}
	c.config.TrackChanges(before, config.SourceFlag)

	return c.config.Validate()
}

// initLogging initializes logging
func (c *Container) initLogging() error {
	c.loggerFactory = logging.NewLoggerFactory(c.config.Logging)
	c.logger = c.loggerFactory.CreateLogger("copilot-exporter")

	c.logger.Debug(context.Background(), "Configuration loaded",
		domain.NewField("config_file", c.configFilePath()),
		domain.NewField("sources", c.describeSources()),
		domain.NewField("token", c.config.GitHub.MaskedToken()),
	)
	return nil
}

// initRepositories initializes repositories
func (c *Container) initRepositories() error {
	gh := c.config.GitHub
	c.usageRepo = infraRepo.NewGitHubCopilotAPIRepository(
		gh.APIBaseURL,
		gh.Organization,
		gh.Token,
		time.Duration(gh.TimeoutSec)*time.Second,
	)

	c.gaugeRegistry = infraRepo.NewPrometheusGaugeRegistry()

	if !c.config.RemoteWrite.Enabled() {
		c.metricsPusher = infraRepo.NewNoOpMetricsPusher()
		return nil
	}

	pusher, err := infraRepo.NewRemoteWritePusher(c.config.RemoteWrite, c.gaugeRegistry.Registry(), gh.Organization)
	if err != nil {
		return err
	}
	c.metricsPusher = pusher
	c.logger.Info(context.Background(), "Remote write enabled",
		domain.NewField("url", c.config.RemoteWrite.URL))
	return nil
}

// initUseCases initializes use cases
func (c *Container) initUseCases() error {
	c.statusService = impl.NewStatusService()
	c.usagePoller = impl.NewUsagePollerImpl(
		c.usageRepo,
		c.gaugeRegistry,
		c.metricsPusher,
		c.statusService,
		c.config.Poller,
		c.loggerFactory.CreateLogger("poller"),
	)
	return nil
}

// initPresenters initializes presenters
func (c *Container) initPresenters() error {
	c.consolePresenter = presenter.NewConsolePresenter(c.output)
	c.jsonPresenter = presenter.NewJSONPresenter(c.output)
	return nil
}

// initControllers initializes controllers
func (c *Container) initControllers() error {
	c.httpController = controller.NewHTTPController(
		c.config.Server,
		c.gaugeRegistry.Registry(),
		c.statusService,
		c.loggerFactory.CreateLogger("http"),
	)
	return nil
}

// Run serves HTTP and polls until ctx is cancelled or either of them fails
func (c *Container) Run(ctx context.Context) error {
	c.logger.Info(ctx, "Starting copilot exporter",
		domain.NewField("organization", c.config.GitHub.Organization),
		domain.NewField("listen_address", c.config.Server.ListenAddress),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.httpController.Serve(gctx)
	})
	g.Go(func() error {
		return c.usagePoller.Run(gctx)
	})

	err := g.Wait()
	c.logger.Info(context.Background(), "Copilot exporter stopped")
	return err
}

// RunOnce performs a single poll and prints the published gauges.
// format is "text" (exposition format) or "json".
func (c *Container) RunOnce(ctx context.Context, format string) error {
	var p presenter.PollPresenter
	switch format {
	case "", "text":
		p = c.consolePresenter
	case "json":
		p = c.jsonPresenter
	default:
		return domain.ErrInvalidInput("output", "must be text or json")
	}

	if err := c.usagePoller.PollOnce(ctx); err != nil {
		return err
	}

	status, err := c.statusService.GetStatus()
	if err != nil {
		return err
	}
	families, err := c.gaugeRegistry.UsageFamilies()
	if err != nil {
		return err
	}
	return p.PrintPoll(status, families)
}

// Shutdown releases resources held by the container
func (c *Container) Shutdown() error {
	var firstErr error
	if c.metricsPusher != nil {
		if err := c.metricsPusher.Close(); err != nil {
			firstErr = err
		}
	}
	if c.loggerFactory != nil {
		if err := c.loggerFactory.Shutdown(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.AppConfig {
	return c.config
}

// GetLoggerFactory returns the logger factory
func (c *Container) GetLoggerFactory() domain.LoggerFactory {
	return c.loggerFactory
}

// GetLogger returns the main logger
func (c *Container) GetLogger() domain.Logger {
	return c.logger
}

// GetStatusService returns the status service
func (c *Container) GetStatusService() usecase.StatusService {
	return c.statusService
}

// GetHTTPController returns the HTTP controller
func (c *Container) GetHTTPController() *controller.HTTPController {
	return c.httpController
}

func (c *Container) configFilePath() string {
	if c.configRepo == nil {
		return ""
	}
	return c.configRepo.GetConfigPath()
}

// describeSources lists the fields that did not come from defaults
func (c *Container) describeSources() []string {
	var sources []string
	for key, source := range c.config.ConfigSources {
		if source != config.SourceDefault {
			sources = append(sources, key+"="+string(source))
		}
	}
	sort.Strings(sources)
	return sources
}
