package main

import (
	"os"

	warrencmder "github.com/papercomputeco/warren/cmd/warren"
)

func main() {
	cmd := warrencmder.NewWarrenCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
