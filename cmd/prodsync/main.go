package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"prodsync/syncengine/ado"
	"prodsync/syncengine/schema"
	"prodsync/syncengine/services"
	"prodsync/syncengine/source"
	"prodsync/utils/logging"

	"github.com/caarlos0/env/v10"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogmulti "github.com/samber/slog-multi"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

/**
 * ==========================================================================
 * ==== All variables used by the sync engine must be loaded here. This  ====
 * ==== keeps the data flow clear so a user can see which variables are  ====
 * ==== exposed and how the values propagate through the system.         ====
 * ==========================================================================
 */
type syncEngineEnv struct {
	DatabaseUri string `env:"DATABASE_URI,required"`

	SourceApiUrl   string `env:"SOURCE_API_URL,required"`
	SourceApiToken string `env:"SOURCE_API_TOKEN,required"`

	AdoOrgUrl  string `env:"ADO_ORG_URL,required"`
	AdoProject string `env:"ADO_PROJECT,required"`
	AdoPat     string `env:"ADO_PAT,required"`

	LogDir string `env:"LOG_DIR" envDefault:"logs"`

	CorsOrigin string `env:"CORS_ORIGIN" envDefault:"*"`

	ReaperIntervalSeconds  int `env:"REAPER_INTERVAL_SECONDS" envDefault:"60"`
	ReaperThresholdMinutes int `env:"REAPER_THRESHOLD_MINUTES" envDefault:"30"`
}

func loadEnv() (*syncEngineEnv, error) {
	cfg := &syncEngineEnv{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFile(envFile string) {
	slog.Info(fmt.Sprintf("loading env from file %v", envFile))
	err := godotenv.Load(envFile)
	if err != nil {
		log.Fatalf("error loading .env file '%v': %v", envFile, err)
	}
}

func initLogging(logFile *os.File) {
	jsonHandler := slog.NewJSONHandler(logFile, logging.JsonHandlerOptions(true))
	textHandler := slog.NewTextHandler(os.Stderr, nil)

	logger := slog.New(slogmulti.Fanout(jsonHandler, textHandler))
	slog.SetDefault(logger)
	slog.Info("logging initialized", "log_file", logFile.Name(), "code", logging.SYSTEM)
}

func initDb(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("error opening database connection: %v", err)
	}

	err = db.AutoMigrate(schema.AllModels()...)
	if err != nil {
		log.Fatalf("error migrating db schema: %v", err)
	}

	return db
}

func main() {
	envFile := flag.String("env", "", "File to load env variables from. If not specified will just load them from the environment variables already defined.")
	port := flag.Int("port", 8000, "Port to run server on")

	flag.Parse()

	if *envFile != "" {
		loadEnvFile(*envFile)
	}
	env, err := loadEnv()
	if err != nil {
		log.Fatalf("failed to load environment variables: %v", err)
	}

	err = os.MkdirAll(env.LogDir, 0777)
	if err != nil {
		log.Fatalf("error creating log dir: %v", err)
	}

	logFile, err := os.OpenFile(filepath.Join(env.LogDir, "prodsync.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer logFile.Close()

	initLogging(logFile)

	db := initDb(env.DatabaseUri)

	sourceClient := source.NewHttpClient(env.SourceApiUrl, env.SourceApiToken)
	targetClient := ado.NewHttpClient(env.AdoOrgUrl, env.AdoProject, env.AdoPat)

	engine := services.NewSyncEngine(db, sourceClient, targetClient)

	go engine.StaleRunReaper(
		time.Duration(env.ReaperIntervalSeconds)*time.Second,
		time.Duration(env.ReaperThresholdMinutes)*time.Minute,
	)

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{env.CorsOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Mount("/api/v1", engine.Routes())
	r.Handle("/metrics", promhttp.Handler())

	slog.Info("starting server", "port", *port, "code", logging.SYSTEM)
	err = http.ListenAndServe(fmt.Sprintf(":%d", *port), r)
	if err != nil {
		log.Fatalf("listen and serve returned error: %v", err.Error())
	}
}
