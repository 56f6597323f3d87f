// Command themezer crawls the Themezer Switch theme catalog, downloading each
// pack's theme file and preview into a resumable directory tree.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
