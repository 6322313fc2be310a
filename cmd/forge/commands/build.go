package commands

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.trai.ch/forge/internal/app"
	"go.trai.ch/forge/internal/core/domain"
)

func (c *CLI) newBuildCmd() *cobra.Command {
	var opts app.BuildOptions

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build every package of the manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := c.app.Build(cmd.Context(), opts)
			if report != nil {
				printReport(cmd, report)
			}
			return err
		},
	}

	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 0, "Number of parallel build jobs (default: host parallelism)")
	cmd.Flags().BoolVar(&opts.Locked, "locked", false, "Fail when the resolution diverges from forge.lock")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Rebuild even when stamps and cache match")

	return cmd
}

func printReport(cmd *cobra.Command, report *domain.BuildReport) {
	names := make([]string, 0, len(report.Results))
	for name := range report.Results {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		res := report.Results[name]
		line := fmt.Sprintf("%-10s %s %s", res.Status, res.Name, res.Version)
		if res.Duration > 0 {
			line += fmt.Sprintf(" (%s)", res.Duration.Round(timeUnit(res.Duration)))
		}
		cmd.Println(line)
	}

	cmd.Printf("%d packages, %d cached, %s elapsed\n", len(report.Results), report.Cached(), report.Elapsed.Round(timeUnit(report.Elapsed)))
}

func timeUnit(d time.Duration) time.Duration {
	if d < time.Second {
		return time.Millisecond
	}
	return 10 * time.Millisecond
}
