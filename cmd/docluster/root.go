package main

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/docluster/config"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "docluster",
		Short:         "Adaptive document clustering",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")

	load := func() (*config.Config, error) {
		return config.Load(configPath)
	}

	root.AddCommand(
		newRunCmd(load),
		newConfigCmd(load),
		newCacheCmd(load),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("docluster version %s\n", version)
		},
	}
}

func newConfigCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Prints the configuration after applying the file and the
DOCLUSTER_* environment variables. Secrets are redacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			out, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
