package main

import (
	"os"

	lectorcmder "github.com/lectorhq/lector/cmd/lector"
)

func main() {
	cmd := lectorcmder.NewLectorCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
