// Command createadmin bootstraps an admin account, since admin accounts
// cannot be created through the public API.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"storefront/config"
	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/util"
)

func main() {
	username := flag.String("username", "", "admin username")
	password := flag.String("password", "", "admin password (min 6 characters)")
	flag.Parse()

	if *username == "" || *password == "" {
		log.Fatal("Usage: createadmin -username <name> -password <password>")
	}

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	accounts := service.NewAccountService(db, nil)
	user, err := accounts.CreateAdmin(ctx, *username, *password)
	if err != nil {
		log.Fatalf("Failed to create admin user: %v", err)
	}

	log.Printf("Admin user created successfully: id=%d, username=%s", user.ID, user.Username)
}
