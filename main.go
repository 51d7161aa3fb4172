package main

import (
	"os"

	"github.com/lmoreno87/advmatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
