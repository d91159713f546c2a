// Package main is the sheetsql command.
package main

import (
	"os"

	"github.com/campusinsight/sheetsql/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
