// Command vecsearch builds, serves and publishes product-quantized vector
// search collections.
//
// Usage:
//
//	vecsearch [--config file] <command> [flags]
//
// Commands:
//
//	train      - Train the quantizer of a collection from a TSV or XLSX file
//	build      - Train, index and store a collection
//	search     - Query a stored collection
//	serve      - Run the HTTP search API
//	publish    - Upload a collection snapshot and make it current
//	fetch      - Download the current (or a given) snapshot
//	snapshots  - List published snapshots
//	prune      - Delete old snapshots
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
