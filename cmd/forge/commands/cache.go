package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the build artifact cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Summarize the cache contents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := c.app.CacheInfo()
			if err != nil {
				return err
			}
			cmd.Printf("%d objects, %d bytes\n", info.Objects, info.TotalBytes)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clean",
		Short: "Remove every cached artifact",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.app.CacheClean()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "export <archive>",
		Short: "Write the cache as a portable archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return c.app.CacheExport(args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import <archive>",
		Short: "Merge an exported archive into the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return c.app.CacheImport(args[0])
		},
	})

	return cmd
}
