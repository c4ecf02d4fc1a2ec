// Command docsync is a real-time document sync client.
package main

import (
	"fmt"
	"os"

	"github.com/custodia-labs/docsync/internal/adapters/driving/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
