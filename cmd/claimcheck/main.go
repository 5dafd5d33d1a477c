// Command claimcheck fact-checks documents claim by claim against web
// evidence.
package main

import (
	"fmt"
	"os"

	"github.com/ppiankov/claimcheck/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
