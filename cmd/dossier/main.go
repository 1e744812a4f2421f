package main

import (
	"os"

	"github.com/solatis/dossier/cmd/dossier/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
