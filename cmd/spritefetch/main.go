// Command spritefetch downloads sprites listed in CSV or XLSX files into
// a directory tree (or bucket) organized by category.
//
// Usage:
//
//	spritefetch [flags] <output_dir> <input> [input...]
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
