// Command shopsheet works with a product catalog sheet from the terminal:
// list and export its products, improve a description, and purge the audit
// trail.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newCLI(os.Stdout, os.Stderr).root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
