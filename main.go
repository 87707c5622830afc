package main

import (
	"fmt"
	"log"
	"os"

	"github.com/inboxia/mailcore/config"
	"github.com/inboxia/mailcore/internal/database"
	"github.com/inboxia/mailcore/internal/repository"
	"github.com/inboxia/mailcore/server"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: mailcore <command>")
		fmt.Println("Commands:")
		fmt.Println("  migrate   Run database migrations")
		fmt.Println("  server    Start the application server")
		os.Exit(1)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("Config initialization failed: %v", err)
	}
	if cfg == nil {
		log.Fatalf("config is empty")
	}

	// Setup the database
	mailcoreDB, err := database.InitMailcoreDatabase(&database.DatabaseConfig{
		DBName:          cfg.MailcoreDatabaseConfig.DBName,
		Host:            cfg.MailcoreDatabaseConfig.Host,
		Port:            cfg.MailcoreDatabaseConfig.Port,
		User:            cfg.MailcoreDatabaseConfig.User,
		Password:        cfg.MailcoreDatabaseConfig.Password,
		MaxConn:         cfg.MailcoreDatabaseConfig.MaxConn,
		MaxIdleConn:     cfg.MailcoreDatabaseConfig.MaxIdleConn,
		ConnMaxLifetime: cfg.MailcoreDatabaseConfig.ConnMaxLifetime,
		LogLevel:        cfg.MailcoreDatabaseConfig.LogLevel,
		SSLMode:         cfg.MailcoreDatabaseConfig.SSLMode,
	})
	if err != nil {
		log.Fatalf("Mailcore database initialization failed: %v", err)
	}

	switch os.Args[1] {
	case "migrate":

		err := repository.MigrateDB(mailcoreDB)
		if err != nil {
			log.Fatalf("Database migration failed: %v", err)
		}
		log.Println("Database migration completed successfully")

	case "server":

		log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
		log.Println("Mailcore starting up...")

		server, err := server.NewServer(cfg, mailcoreDB)
		if err != nil {
			log.Fatalf("Server setup failed: %v", err)
		}

		err = server.Run()
		if err != nil {
			log.Fatalf("Server startup failed: %v", err)
		}

		log.Println("Shutdown complete")

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		fmt.Println("Usage: mailcore <command>")
		fmt.Println("Commands:")
		fmt.Println("  migrate   Run database migrations")
		fmt.Println("  server    Start the application server")
		os.Exit(1)
	}
}
