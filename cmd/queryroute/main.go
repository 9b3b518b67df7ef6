// Package main provides the CLI entry point for queryroute.
package main

import (
	"os"

	"github.com/kongusen/AutoReportAI-sub000/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
