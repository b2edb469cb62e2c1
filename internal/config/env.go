package config

import (
	"os"

	"github.com/joho/godotenv"
)

const (
	EnvS3AccessKeyID     = "QUILL_S3_ACCESS_KEY_ID"
	EnvS3SecretAccessKey = "QUILL_S3_SECRET_ACCESS_KEY"
	EnvMinIOAccessKey    = "QUILL_MINIO_ACCESS_KEY"
	EnvMinIOSecretKey    = "QUILL_MINIO_SECRET_KEY"
	EnvRedisPassword     = "QUILL_REDIS_PASSWORD"
	EnvLogLevel          = "QUILL_LOG_LEVEL"
)

// LoadEnv loads .env files into the process environment. Variables already
// set take precedence.
func LoadEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		configLogger.Debug().Err(err).Msg("No .env file loaded")
	}
}

func applyEnv(c *Config) {
	c.Storage.S3.AccessKeyID = os.Getenv(EnvS3AccessKeyID)
	c.Storage.S3.SecretAccessKey = os.Getenv(EnvS3SecretAccessKey)
	c.Storage.MinIO.AccessKey = os.Getenv(EnvMinIOAccessKey)
	c.Storage.MinIO.SecretKey = os.Getenv(EnvMinIOSecretKey)
	c.Sessions.Redis.Password = os.Getenv(EnvRedisPassword)

	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Logging.Level = level
	}
}
