package main

import (
	"os"

	"github.com/lodeworks/lode/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
