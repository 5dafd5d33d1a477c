package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/claimcheck/internal/cache"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the search result cache",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired search results from the disk cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		removed, err := cache.NewDiskCache(cfg.Cache.Dir, cfg.Cache.TTL).Prune()
		if err != nil {
			return fmt.Errorf("prune %s: %w", cfg.Cache.Dir, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %d expired entries from %s\n", removed, cfg.Cache.Dir)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached search result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cache.NewDiskCache(cfg.Cache.Dir, cfg.Cache.TTL).Clear(); err != nil {
			return fmt.Errorf("clear %s: %w", cfg.Cache.Dir, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Cleared %s\n", cfg.Cache.Dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
