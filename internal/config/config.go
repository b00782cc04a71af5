package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDriver  string
	DBDSN     string
	HTTPAddr  string
	JWTSecret string

	// redis; empty addr disables the question cache and distributed lock
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	QuestionCacheTTL time.Duration
	SessionLockTTL   time.Duration

	// rabbitMQ; empty url disables completion events
	RabbitURL   string
	RabbitQueue string

	KnowledgeFile        string
	MaxFollowUpQuestions int
	WorkerConcurrency    int
}

// Load reads the environment, after an optional .env file in the working
// directory. Unset keys fall back to local development defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] .env not loaded: %v", err)
	}

	driver := strings.ToLower(os.Getenv("DB_DRIVER"))
	if driver == "" {
		driver = "sqlite"
	}

	// DSN demo:
	// mysql:    app:apppass@tcp(127.0.0.1:3306)/patient_intake?charset=utf8mb4&parseTime=true&loc=Local
	// postgres: host=127.0.0.1 user=app password=apppass dbname=patient_intake port=5432 sslmode=disable
	dsn := os.Getenv("DB_DSN")
	if dsn == "" && driver == "sqlite" {
		dsn = "patient_consultations.db"
	}

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-change-me"
	}

	rabbitQueue := os.Getenv("RABBIT_QUEUE")
	if rabbitQueue == "" {
		rabbitQueue = "consultation_events"
	}

	return Config{
		DBDriver:  driver,
		DBDSN:     dsn,
		HTTPAddr:  addr,
		JWTSecret: secret,

		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          intEnv("REDIS_DB", 0),
		QuestionCacheTTL: durationEnv("QUESTION_CACHE_TTL", time.Hour),
		SessionLockTTL:   durationEnv("SESSION_LOCK_TTL", 30*time.Second),

		RabbitURL:   os.Getenv("RABBIT_URL"),
		RabbitQueue: rabbitQueue,

		KnowledgeFile:        os.Getenv("KNOWLEDGE_FILE"),
		MaxFollowUpQuestions: intEnv("MAX_FOLLOWUP_QUESTIONS", 5),
		WorkerConcurrency:    intEnv("WORKER_CONCURRENCY", 4),
	}
}

func intEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func durationEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
