package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/todoauth/internal/admin"
	"github.com/dmitrijs2005/todoauth/internal/server"
	"github.com/dmitrijs2005/todoauth/internal/server/config"
	"github.com/dmitrijs2005/todoauth/internal/server/password"
	"github.com/dmitrijs2005/todoauth/internal/server/repositories/repomanager"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	db, err := server.OpenDB(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer db.Close()

	app := admin.NewApp(db, repomanager.NewPostgresRepositoryManager(), password.NewHasher(password.DefaultParams))

	if err := app.Run(ctx, os.Args[1:]); err != nil {
		log.Printf("%v", err)
		db.Close()
		os.Exit(1)
	}

}
