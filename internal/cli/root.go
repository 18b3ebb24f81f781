package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rohmanhakim/pyq-crawler/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	cfgFile     string
	cacheFile   string
	logLevel    string
	outputDir   string
	cleanOutput bool
	concurrency int
	timeout     time.Duration
	lockTimeout time.Duration
	autosave    time.Duration
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pyq-crawler",
	Short: "Search previous-year exam questions by keyword.",
	Long: `pyq-crawler walks every chapter of a subject in the question bank,
fetches each question once, and lists the questions whose text contains a
keyword.

Responses are kept in a local JSON cache shared safely between concurrent
runs, so repeated searches only touch the network for questions not seen
before.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "An error occurred: %s\n", err)
		stop()
		os.Exit(1)
	}
}

// ExecuteArgs runs the command tree with explicit arguments and writers.
func ExecuteArgs(ctx context.Context, args []string, out, errOut io.Writer) error {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "config file path, JSON or YAML (e.g., /home/myuser/pyq.yaml)")
	rootCmd.PersistentFlags().StringVar(&cacheFile, "cache-file", "", "cache file path (defaults to the XDG cache directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().DurationVar(&lockTimeout, "lock-timeout", 0, "maximum wait for the cache file lock")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(subjectsCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)
}

// InitConfigWithError builds the configuration from the defaults, the config
// file when one is given, and then the command line flags.
func InitConfigWithError() (config.Config, error) {
	configBuilder := config.WithDefault()

	if cfgFile != "" {
		fileCfg, err := config.WithConfigFile(cfgFile)
		if err != nil {
			return config.Config{}, fmt.Errorf("error initializing config from file: %w", err)
		}
		configBuilder = &fileCfg
	}

	if cacheFile != "" {
		configBuilder = configBuilder.WithCacheFile(cacheFile)
	}

	if logLevel != "" {
		configBuilder = configBuilder.WithLogLevel(logLevel)
	}

	if outputDir != "" {
		configBuilder = configBuilder.WithOutputDir(outputDir)
	}

	if cleanOutput {
		configBuilder = configBuilder.WithCleanOutput(cleanOutput)
	}

	if concurrency > 0 {
		configBuilder = configBuilder.WithConcurrency(concurrency)
	}

	if timeout > 0 {
		configBuilder = configBuilder.WithTimeout(timeout)
	}

	if lockTimeout > 0 {
		configBuilder = configBuilder.WithLockTimeout(lockTimeout)
	}

	if autosave > 0 {
		configBuilder = configBuilder.WithAutosaveInterval(autosave)
	}

	cfg, err := configBuilder.Build()
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// isTerminal reports whether w is a terminal. Anything that is not an
// *os.File is treated as a pipe.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func ResetFlags() {
	cfgFile = ""
	cacheFile = ""
	logLevel = ""
	outputDir = ""
	cleanOutput = false
	concurrency = 0
	timeout = 0
	lockTimeout = 0
	autosave = 0
	subject = ""
	keyword = ""
	cacheKey = ""
	reportMarkdown = ""
	reportHTML = ""
	metricsFile = ""
	noProgress = false
	keyPrefix = ""
}

// Test helper functions to set flag values from tests
func SetConfigFileForTest(path string) {
	cfgFile = path
}

func SetCacheFileForTest(path string) {
	cacheFile = path
}

func SetLogLevelForTest(level string) {
	logLevel = level
}

func SetOutputDirForTest(dir string) {
	outputDir = dir
}

func SetCleanOutputForTest(clean bool) {
	cleanOutput = clean
}

func SetConcurrencyForTest(conc int) {
	concurrency = conc
}

func SetTimeoutForTest(t time.Duration) {
	timeout = t
}

func SetLockTimeoutForTest(t time.Duration) {
	lockTimeout = t
}

func SetAutosaveForTest(interval time.Duration) {
	autosave = interval
}
