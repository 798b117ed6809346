package main

import (
	"os"

	servecmder "github.com/papercomputeco/folio/cmd/folio/serve"
)

func main() {
	cmd := servecmder.NewServeCmd()
	cmd.Use = "folioapi"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .folio/ directory location")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
