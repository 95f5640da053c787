package main

import (
	"os"

	"github.com/repovis/repovis/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
