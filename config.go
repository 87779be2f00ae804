package timebox

import (
	"flag"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	ListenAddr  string
	LogLevel    string
}

func LoadConfig() (Config, error) {
	isProd := flag.Bool("p", false, "is production environment")
	flag.Parse()
	if *isProd {
		_ = godotenv.Load(".env")
	} else {
		_ = godotenv.Load(".env.dev")
	}

	config := Config{
		DatabaseURL: os.Getenv("TIMEBOX_DB_PATH"),
		ListenAddr:  os.Getenv("TIMEBOX_LISTEN_ADDR"),
		LogLevel:    os.Getenv("TIMEBOX_LOG_LEVEL"),
	}

	if config.DatabaseURL == "" {
		config.DatabaseURL = "timebox.db"
	}
	if config.ListenAddr == "" {
		config.ListenAddr = "127.0.0.1:7311"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}

	return config, nil
}
