package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/gomessenger/internal/buildinfo"
	"github.com/dmitrijs2005/gomessenger/internal/client/cli"
	"github.com/dmitrijs2005/gomessenger/internal/client/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	app := cli.NewApp(cfg)
	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}
