//go:build ignore

// Applies scripts/init_db.sql to the database in DATABASE_URL.
//
//	go run scripts/setup_db.go
package main

import (
	"database/sql"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}

	schema, err := os.ReadFile("scripts/init_db.sql")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read schema file")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if _, err := db.Exec(string(schema)); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}

	log.Info().Msg("schema applied")
}
