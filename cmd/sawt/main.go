package main

import (
	"os"

	"github.com/tillberg/autorestart"

	"github.com/soyeahso/sawt/internal/cli"
)

func main() {
	if os.Getenv("SAWT_AUTORESTART") != "" {
		go autorestart.RestartOnChange()
	}

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
