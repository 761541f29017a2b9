// Command auroracore wires the topology monitor, failover coordinator,
// and limitless router into a runnable connectivity service exposing
// a read-only diagnostics surface.
package main

import (
	"fmt"
	"os"

	"github.com/auroralink/wrapper-core/cmd/auroracore/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
