// Package cli implements the lumigrid command line: offline calculations,
// fixture catalog maintenance and schema migrations.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/turtacn/LumiGrid/internal/application/lighting"
	"github.com/turtacn/LumiGrid/internal/bootstrap"
	"github.com/turtacn/LumiGrid/internal/config"
	"github.com/turtacn/LumiGrid/internal/infrastructure/database/postgres"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LumiGrid/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Output formats accepted by --output.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatTable = "table"
)

type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	Verbose      bool
	NoColor      bool
	Timeout      time.Duration
}

// CLIContext carries initialized dependencies through the command tree.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	OutputFormat string
	Verbose      bool
	Timeout      time.Duration

	factories Factories
}

// Migrator is the schema migration surface used by "migrate".
type Migrator interface {
	Up() error
	Down(steps int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
}

// Factories build the backends commands need. Tests replace them.
type Factories struct {
	// Service returns the lighting service and a release func.
	Service func(ctx context.Context, cc *CLIContext) (lighting.Service, func(), error)
	// Migrator targets the configured database.
	Migrator func(cc *CLIContext) (Migrator, error)
}

// DefaultFactories connect to whatever the configuration enables.
func DefaultFactories() Factories {
	return Factories{
		Service: func(ctx context.Context, cc *CLIContext) (lighting.Service, func(), error) {
			infra, err := bootstrap.Open(ctx, cc.Config, nil, cc.Logger)
			if err != nil {
				return nil, nil, err
			}
			return infra.Service(), infra.Close, nil
		},
		Migrator: func(cc *CLIContext) (Migrator, error) {
			db := cc.Config.Database
			if !db.Enabled {
				return nil, errors.New(errors.ErrCodeFeatureDisabled, "database is not configured")
			}
			return postgres.NewMigrator(db.URL(), db.MigrationPath), nil
		},
	}
}

// NewRootCommand creates the root command with all global flags and
// subcommands. Zero-valued factories fall back to DefaultFactories.
func NewRootCommand(f Factories) *cobra.Command {
	def := DefaultFactories()
	if f.Service == nil {
		f.Service = def.Service
	}
	if f.Migrator == nil {
		f.Migrator = def.Migrator
	}
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "lumigrid",
		Short: "LumiGrid CLI: photosynthetic light grid calculations",
		Long: "LumiGrid computes PPFD and DLI over a room from fixture placements,\n" +
			"with adaptive refinement, contour lines and uniformity statistics.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts, f)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./lumigrid.yaml)")
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", FormatText, "output format (text, json, yaml, table)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable verbose output")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	pf.DurationVar(&opts.Timeout, "timeout", 2*time.Minute, "global operation timeout")

	cmd.AddCommand(
		NewCalculateCmd(),
		NewCatalogCmd(),
		NewMigrateCmd(),
		NewVersionCmd(),
	)
	return cmd
}

func persistentPreRun(cmd *cobra.Command, opts *RootOptions, f Factories) error {
	switch opts.OutputFormat {
	case FormatText, FormatJSON, FormatYAML, FormatTable:
	default:
		return errors.Newf(errors.ErrCodeBadRequest, "unknown output format %q (text, json, yaml, table)", opts.OutputFormat)
	}
	if opts.NoColor {
		color.NoColor = true
	}

	cfg, err := initConfig(opts, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}
	logger, err := initLogger(opts)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}

	cc := &CLIContext{
		Config:       cfg,
		Logger:       logger,
		OutputFormat: opts.OutputFormat,
		Verbose:      opts.Verbose,
		Timeout:      opts.Timeout,
		factories:    f,
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))
	return nil
}

// initConfig loads --config, else the first file found on the search path,
// else LUMIGRID_* environment variables over defaults.
func initConfig(opts *RootOptions, stderr io.Writer) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.Load(opts.ConfigPath)
	}

	searchPaths := []string{"./lumigrid.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".lumigrid", "config.yaml"))
	}
	searchPaths = append(searchPaths, "/etc/lumigrid/config.yaml")

	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			return config.Load(p)
		}
	}
	if opts.Verbose {
		fmt.Fprintln(stderr, "no config file found, using defaults and environment")
	}
	return config.LoadFromEnv()
}

// initLogger writes console-format logs to stderr so stdout stays parseable.
func initLogger(opts *RootOptions) (logging.Logger, error) {
	level, err := logging.ParseLevel(opts.LogLevel)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		level = logging.LevelDebug
	}
	return logging.NewLogger(logging.LogConfig{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// GetCLIContext extracts the CLIContext installed by the root command.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.New(errors.ErrCodeInternal, "command context is nil")
	}
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cc == nil {
		return nil, errors.New(errors.ErrCodeInternal, "CLI context not initialized")
	}
	return cc, nil
}

// withService runs fn against a service built by the configured factory,
// bounded by --timeout.
func withService(cmd *cobra.Command, fn func(ctx context.Context, cc *CLIContext, svc lighting.Service) error) error {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), cc.Timeout)
	defer cancel()

	svc, release, err := cc.factories.Service(ctx, cc)
	if err != nil {
		return err
	}
	if release != nil {
		defer release()
	}
	return fn(ctx, cc, svc)
}

// Execute is the main entry point for the CLI application.
func Execute() error {
	root := NewRootCommand(Factories{})
	if err := root.Execute(); err != nil {
		PrintError(root, err)
		return err
	}
	return nil
}

// PrintResult renders data as JSON or YAML, or through text when the
// format is text or table.
func PrintResult(cmd *cobra.Command, format string, data interface{}, text func(io.Writer) error) error {
	out := cmd.OutOrStdout()
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(toYAMLValue(data))
	default:
		return text(out)
	}
}

// toYAMLValue round-trips through JSON so YAML keys match the JSON tags.
func toYAMLValue(data interface{}) interface{} {
	raw, err := json.Marshal(data)
	if err != nil {
		return data
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return data
	}
	return v
}

// PrintError writes err to stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", red("Error:"), err.Error())
}

// PrintSuccess writes a formatted success message to stdout.
func PrintSuccess(cmd *cobra.Command, msg string) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString("OK:"), msg)
}

func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// NewVersionCmd prints build information.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := struct {
				Version   string `json:"version"`
				Commit    string `json:"commit"`
				BuildDate string `json:"build_date"`
			}{Version, GitCommit, BuildDate}

			format := FormatText
			if cc, err := GetCLIContext(cmd); err == nil {
				format = cc.OutputFormat
			}
			return PrintResult(cmd, format, info, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "lumigrid %s\n  commit: %s\n  built:  %s\n", Version, GitCommit, BuildDate)
				return err
			})
		},
	}
}
