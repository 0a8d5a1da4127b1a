package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/docluster/config"
	"github.com/hupe1980/docluster/resultcache"
)

var errNoBlobCache = errors.New("the configured cache backend does not persist results (use local, s3 or minio)")

func newCacheCmd(load func() (*config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear the persisted result cache",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List cached results",
			Args:  cobra.NoArgs,
			RunE: withBlobCache(load, func(cmd *cobra.Command, c *resultcache.BlobCache) error {
				keys, err := c.Keys(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, key := range keys {
					if _, err := fmt.Fprintf(out, "%s\tk=%d\n", key.Fingerprint, key.TargetK); err != nil {
						return err
					}
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "purge",
			Short: "Remove every cached result",
			Args:  cobra.NoArgs,
			RunE: withBlobCache(load, func(cmd *cobra.Command, c *resultcache.BlobCache) error {
				n, err := c.Purge(cmd.Context())
				if err != nil {
					return fmt.Errorf("purged %d results: %w", n, err)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "purged %d results\n", n)
				return err
			}),
		},
	)
	return cmd
}

func withBlobCache(load func() (*config.Config, error), fn func(*cobra.Command, *resultcache.BlobCache) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := load()
		if err != nil {
			return err
		}
		rt, err := cfg.Build(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = rt.Close(cmd.Context()) }()

		c, ok := rt.Cache.(*resultcache.BlobCache)
		if !ok {
			return errNoBlobCache
		}
		return fn(cmd, c)
	}
}
