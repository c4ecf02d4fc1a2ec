package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server health once",
	Long: `Probes the server's /health endpoint, retrying according to the
[health] settings, and exits non-zero when the server is unhealthy.`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, _ []string) error {
	_, settings, err := loadSettings()
	if err != nil {
		return err
	}

	checker, stop, err := healthFactory(settings)
	if err != nil {
		return err
	}
	defer stop()

	result := checker.CheckHealth(cmd.Context())
	printHealth(cmd, newStyles(cmd.OutOrStdout()), result)
	if !result.Healthy {
		if result.Err != nil {
			return result.Err
		}
		return domain.ErrUnhealthy
	}
	return nil
}

func printHealth(cmd *cobra.Command, st styles, result domain.HealthResult) {
	cmd.Printf("%s %s via %s in %s (%d attempt(s))\n",
		st.Title("Health:"),
		st.Healthy(result.Healthy),
		result.Source,
		result.Latency.Round(time.Millisecond),
		result.Attempts,
	)

	names := make([]string, 0, len(result.Subsystems))
	for name := range result.Subsystems {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cmd.Printf("  %-12s %s\n", name, st.Healthy(result.Subsystems[name]))
	}

	if result.Err != nil {
		cmd.Println(st.Muted(fmt.Sprintf("  error: %v", result.Err)))
	}
}
