// dbfs mounts remote SQL Server catalog state as a local filesystem.
// Each configured server appears as a directory of view files whose
// content is fetched on open, plus an optional directory of custom
// query outputs rebuilt on every listing.
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
