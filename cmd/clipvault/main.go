// Command clipvault records and manages clipboard history.
package main

import (
	"os"

	"github.com/kilupskalvis/clipvault/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
