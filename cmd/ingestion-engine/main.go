package main

import (
	"os"

	"github.com/Hou-dini/ingestion-engine/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
