package main

import (
	"os"

	servecmder "github.com/papercomputeco/warren/cmd/warren/serve"
)

func main() {
	cmd := servecmder.NewServeCmd()
	cmd.Use = "warrengw"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory containing the .warren config dotdir")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
