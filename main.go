package main

import (
	"os"

	"github.com/forgearmory/armory/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
