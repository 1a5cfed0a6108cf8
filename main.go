package main

import (
	"flag"
	"fmt"
	"os"

	"archidoc/core/appbootstrap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the optional YAML config file")
	flag.Parse()

	if err := appbootstrap.Run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "archidoc: %v\n", err)
		os.Exit(1)
	}
}
