package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"prodsync/cmd/migration/versions"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatalf("missing required env variable %v", key)
	}
	return value
}

func main() {
	envFile := flag.String("env", "", "File to load env variables from.")
	dbUri := flag.String("db", "", "Database uri to migrate. Overrides DATABASE_URI.")

	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Fatalf("error loading .env file '%v': %v", *envFile, err)
		}
	}

	dsn := *dbUri
	if dsn == "" {
		dsn = mustEnv("DATABASE_URI")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("error opening database connection: %v", err)
	}

	m := gormigrate.New(db, gormigrate.DefaultOptions, versions.Migrations())

	if err := m.Migrate(); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	slog.Info("migrations applied")
}
