// v2g encodes and decodes session messages and runs a charging station or
// a vehicle session.
//
// Usage:
//
//	v2g [--config FILE.toml] [--log-level LEVEL] [--lax] <command>
//
// Examples:
//
//	v2g schemas
//	v2g encode --phase main stop.yaml
//	v2g decode --phase main --v2gtp 01fe8001...
//	v2g station --listen :15118 --metrics :9115
//	v2g ev --station 127.0.0.1:15118 --stop pause
package main

import (
	"fmt"
	"os"

	"github.com/backkem/v2g/cmd/v2g/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "v2g: %v\n", err)
		os.Exit(1)
	}
}
