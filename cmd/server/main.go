package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/bigdatakeeper/internal/server"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/config"
)

func main() {

	ctx := context.Background()
	app, err := server.NewApp(ctx, os.Args[1:], config.OSEnviron(), os.Stdout)

	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

	app.Run(ctx)

}
