package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a config value, e.g. health.retries 5",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	store, settings, err := loadSettings()
	if store == nil {
		return err
	}
	st := newStyles(cmd.OutOrStdout())

	cmd.Printf("%s %s\n\n", st.Title("Config:"), store.Path())
	if err != nil {
		cmd.Println(st.Bad(fmt.Sprintf("Invalid configuration: %v", err)))
		return err
	}

	cmd.Println("[server]")
	cmd.Printf("  url:       %s\n", settings.Server.URL)
	cmd.Printf("  base_url:  %s\n", settings.Server.BaseURL)
	cmd.Println()

	cmd.Println("[reconnect]")
	cmd.Printf("  enabled:   %t\n", settings.Reconnect.Enabled)
	cmd.Printf("  attempts:  %d\n", settings.Reconnect.Attempts)
	cmd.Printf("  delay:     %s\n", settings.Reconnect.Delay)
	cmd.Println()

	cmd.Println("[health]")
	cmd.Printf("  timeout:      %s\n", settings.Health.Timeout)
	cmd.Printf("  retries:      %d\n", settings.Health.Retries)
	cmd.Printf("  retry_delay:  %s\n", settings.Health.RetryDelay)
	cmd.Printf("  interval:     %s\n", settings.Health.Interval)
	cmd.Println()

	cmd.Println("[recovery]")
	cmd.Printf("  max_attempts:        %d\n", settings.Recovery.MaxAttempts)
	cmd.Printf("  initial_delay:       %s\n", settings.Recovery.InitialDelay)
	cmd.Printf("  backoff_multiplier:  %g\n", settings.Recovery.BackoffMultiplier)
	cmd.Printf("  max_delay:           %s\n", settings.Recovery.MaxDelay)
	cmd.Println()

	cmd.Println("[auth]")
	printAuth(cmd, settings.Auth)
	cmd.Println()

	cmd.Println(st.OK("Configuration is valid."))
	return nil
}

func printAuth(cmd *cobra.Command, a domain.AuthSettings) {
	switch {
	case a.SessionFile != "":
		cmd.Printf("  session_file:  %s\n", a.SessionFile)
	case a.TokenURL != "":
		cmd.Printf("  user_id:        %s\n", a.UserID)
		cmd.Printf("  token_url:      %s\n", a.TokenURL)
		cmd.Printf("  client_id:      %s\n", a.ClientID)
		cmd.Printf("  client_secret:  %s\n", maskSecret(a.ClientSecret))
		if len(a.Scopes) > 0 {
			cmd.Printf("  scopes:         %s\n", strings.Join(a.Scopes, ", "))
		}
	default:
		cmd.Println("  (anonymous)")
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	store, err := openConfig(configPath)
	if err != nil {
		return err
	}
	key, raw := args[0], args[1]
	if !strings.Contains(key, ".") {
		return errors.New("key must be section.name, e.g. health.retries")
	}

	if err := store.Set(key, parseValue(raw)); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	if _, err := store.Settings(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	}
	cmd.Printf("Set %s = %s\n", key, raw)
	return nil
}

// parseValue keeps TOML types: integers, floats and booleans are stored
// natively, everything else as a string.
func parseValue(raw string) any {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
