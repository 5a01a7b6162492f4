package storage

import (
	"log"
	"os"

	"github.com/go-redis/redis/v8"
)

var Redis *redis.Client

func InitializeRedis() {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "localhost:6379"
		log.Println("⚠️  REDIS_URL not set, using localhost:6379 (development mode)")
	}

	// REDIS_URL is either a bare host:port or a full redis:// URL with
	// embedded credentials. REDIS_PASSWORD wins over the URL's password so
	// the secret can live in its own variable.
	opts := &redis.Options{Addr: redisURL}
	if parsed, err := redis.ParseURL(redisURL); err == nil {
		opts = parsed
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		opts.Password = password
	}

	Redis = redis.NewClient(opts)

	log.Println("🔧 Redis initialized with address:", opts.Addr)
}
