package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rohmanhakim/pyq-crawler/internal/cachestore"
	"github.com/rohmanhakim/pyq-crawler/internal/config"
	"github.com/rohmanhakim/pyq-crawler/internal/metadata"
	"github.com/spf13/cobra"
)

var keyPrefix string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or edit the response cache.",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show where the cache lives and what it holds.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, store, source, err := openCache(cmd)
		if err != nil {
			return err
		}

		questions, listings := 0, 0
		for _, key := range store.Keys() {
			if strings.HasPrefix(key, cachestore.QuestionKey("")) {
				questions++
			} else {
				listings++
			}
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "File:\t%s\n", cfg.CacheFile())
		fmt.Fprintf(w, "Loaded from:\t%s\n", source)
		fmt.Fprintf(w, "Size:\t%s\n", fileSize(cfg.CacheFile()))
		fmt.Fprintf(w, "Entries:\t%d\n", store.Len())
		fmt.Fprintf(w, "Questions:\t%d\n", questions)
		fmt.Fprintf(w, "Other entries:\t%d\n", listings)
		return w.Flush()
	},
}

var cacheKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List cache keys in sorted order.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, store, _, err := openCache(cmd)
		if err != nil {
			return err
		}
		for _, key := range store.Keys() {
			if keyPrefix != "" && !strings.HasPrefix(key, keyPrefix) {
				continue
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
		}
		return nil
	},
}

var cacheForgetCmd = &cobra.Command{
	Use:   "forget <key>...",
	Short: "Drop entries from the cache, e.g. a stale chapter listing.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, _, err := openCache(cmd)
		if err != nil {
			return err
		}

		var missing []string
		for _, key := range args {
			if store.Delete(key) {
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", key)
			} else {
				missing = append(missing, key)
			}
		}
		if store.Dirty() {
			if err := store.Persist(cmd.Context()); err != nil {
				return err
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("not in cache: %s", strings.Join(missing, ", "))
		}
		return nil
	},
}

func init() {
	cacheKeysCmd.Flags().StringVar(&keyPrefix, "prefix", "", "only list keys starting with this prefix")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheKeysCmd)
	cacheCmd.AddCommand(cacheForgetCmd)
}

func openCache(cmd *cobra.Command) (config.Config, *cachestore.Store, cachestore.LoadSource, error) {
	cfg, err := InitConfigWithError()
	if err != nil {
		return config.Config{}, nil, cachestore.SourceEmpty, err
	}
	errOut := cmd.ErrOrStderr()
	recorder := metadata.NewRecorder(metadata.NewLogger(cfg.LogLevel(), errOut, isTerminal(errOut)))

	store := cachestore.NewStore(cachestore.NewPaths(cfg.CacheFile()), cfg.LockTimeout(), recorder)
	_, source := store.Load()
	return cfg, store, source, nil
}

func fileSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "-"
	}
	return fmt.Sprintf("%d bytes", info.Size())
}
