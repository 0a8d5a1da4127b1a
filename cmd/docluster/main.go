// Command docluster clusters JSON-lines documents from the command line.
//
//	docluster run --input docs.jsonl --k 5
//	docluster cache list --config docluster.yaml
package main

import (
	"os"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
