package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/docsync/internal/adapters/driven/auth"
	"github.com/custodia-labs/docsync/internal/adapters/driven/config/file"
)

var loginCmd = &cobra.Command{
	Use:   "login [user-id]",
	Short: "Store a user id and access token",
	Long: `Prompts for an access token and writes the session file. A running
'docsync watch' picks up the new identity and reconnects.`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

var loginExpiresIn time.Duration

// readToken reads the access token; replaced in tests.
var readToken = readPassword

func init() {
	loginCmd.Flags().DurationVar(&loginExpiresIn, "expires-in", 0, "Token lifetime (0 means no expiry)")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	store, err := openConfig(configPath)
	if err != nil {
		return err
	}

	path := store.GetString(file.KeyAuthSessionFile)
	if path == "" {
		path = filepath.Join(filepath.Dir(store.Path()), "session.json")
		if err := store.Set(file.KeyAuthSessionFile, path); err != nil {
			return fmt.Errorf("failed to record session file: %w", err)
		}
	}

	cmd.Print("Access token: ")
	token := strings.TrimSpace(readToken(cmd.InOrStdin()))
	cmd.Println()
	if token == "" {
		return errors.New("no token entered")
	}

	session := auth.Session{UserID: args[0], Token: token}
	if loginExpiresIn > 0 {
		session.ExpiresAt = time.Now().Add(loginExpiresIn).UTC()
	}
	if err := auth.WriteSession(path, session); err != nil {
		return err
	}

	cmd.Printf("Logged in as %s (session: %s)\n", args[0], path)
	return nil
}

//nolint:errcheck // CLI helper, error ignored for UX
func readPassword(in io.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return string(password)
		}
	}
	reader := bufio.NewReader(in)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}
