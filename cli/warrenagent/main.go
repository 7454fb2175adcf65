package main

import (
	"os"

	agentcmder "github.com/papercomputeco/warren/cmd/warren/serve/agent"
)

func main() {
	cmd := agentcmder.NewAgentCmd()
	cmd.Use = "warrenagent"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory containing the .warren config dotdir")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
