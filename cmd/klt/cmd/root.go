package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/goklt/internal/config"
	"github.com/MeKo-Tech/goklt/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// app is the state shared by the commands of one root command instance.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
}

// NewRootCommand builds the klt command tree. Every call gets its own
// viper instance so commands can be executed repeatedly in tests.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New(), logger: slog.Default()}

	rootCmd := &cobra.Command{
		Use:   "klt",
		Short: "Pyramidal KLT point feature tracker",
		Long: `Track point features through a sequence of grayscale frames using the
pyramidal Kanade-Lucas-Tomasi method.

Features are detected with a Shi-Tomasi corner detector, tracked coarse to
fine through an image pyramid, pruned when they crowd together and replaced
when lost, keeping a fixed budget of tracks.

Examples:
  klt track frames/
  klt track f000.png f001.png f002.png --format json
  klt track frames/ --max-features 500 --workers 4 --output tracks.csv --format csv
  klt serve --port 8080
  klt config init klt.yaml`,
		Version:      version.String(),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is search in ., $HOME, $HOME/.config/klt, /etc/klt)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	bindFlags(a.v, rootCmd.PersistentFlags(), []flagBinding{
		{"verbose", "verbose"},
		{"log_level", "log-level"},
	})

	rootCmd.AddCommand(newTrackCommand(a))
	rootCmd.AddCommand(newServeCommand(a))
	rootCmd.AddCommand(newConfigCommand(a))
	return rootCmd
}

// Execute runs the root command and exits non-zero on failure.
// This is called by main.main().
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// init loads the configuration and installs the structured logger. Logs go
// to stderr so reports written to stdout stay machine readable.
func (a *app) init(logOut io.Writer) error {
	loader := config.NewLoaderWithViper(a.v)
	cfg, err := loader.LoadWithFile(a.cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	a.cfg = cfg

	a.logger = slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: logLevel(cfg),
	}))
	slog.SetDefault(a.logger)
	if used := loader.GetConfigFileUsed(); used != "" {
		a.logger.Debug("configuration loaded", "file", used)
	}
	return nil
}

func logLevel(cfg *config.Config) slog.Level {
	// Verbose wins over log_level.
	if cfg.Verbose {
		return slog.LevelDebug
	}
	switch cfg.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type flagBinding struct {
	key  string
	flag string
}

// bindFlags binds flags to viper configuration keys.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, bindings []flagBinding) {
	for _, binding := range bindings {
		if err := v.BindPFlag(binding.key, flags.Lookup(binding.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", binding.flag, err))
		}
	}
}
