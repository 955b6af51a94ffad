package config

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	// File paths
	DBPath string

	// Server settings
	ServerHost     string
	ServerPort     int
	APIKey         string
	MaxImportItems int

	// Collector settings
	PerKeyword      int
	CommentsPerPost int
	BilibiliCookie  string
	ZhihuCookie     string
	RSSHubBase      string

	// Zhihu OAuth application credentials
	ZhihuClientID     string
	ZhihuClientSecret string

	// Log settings
	LogLevel zerolog.Level
}

// Load builds the configuration from defaults, an optional .env file and
// the CONTENTHUB_* environment.
func Load() *Config {
	LoadDotEnv()

	logLevel, _ := zerolog.ParseLevel(DefaultLogLevel)

	return &Config{
		DBPath:         GetEnvString("CONTENTHUB_DB_PATH", DefaultDBPath),
		ServerHost:     GetEnvString("CONTENTHUB_SERVER_HOST", DefaultServerHost),
		ServerPort:     GetEnvInt("CONTENTHUB_SERVER_PORT", DefaultServerPort),
		APIKey:         GetEnvString("CONTENTHUB_API_KEY", ""),
		MaxImportItems: GetEnvInt("CONTENTHUB_MAX_IMPORT_ITEMS", DefaultMaxImportItems),

		PerKeyword:      GetEnvInt("CONTENTHUB_PER_KEYWORD", DefaultPerKeyword),
		CommentsPerPost: GetEnvInt("CONTENTHUB_COMMENTS_PER_POST", DefaultCommentsPerPost),
		BilibiliCookie:  GetEnvString("CONTENTHUB_BILIBILI_COOKIE", ""),
		ZhihuCookie:     GetEnvString("CONTENTHUB_ZHIHU_COOKIE", ""),
		RSSHubBase:      GetEnvString("CONTENTHUB_RSSHUB_BASE", DefaultRSSHubBase),

		ZhihuClientID:     GetEnvString("CONTENTHUB_ZHIHU_CLIENT_ID", ""),
		ZhihuClientSecret: GetEnvString("CONTENTHUB_ZHIHU_CLIENT_SECRET", ""),

		LogLevel: GetEnvLogLevel("CONTENTHUB_LOG_LEVEL", logLevel),
	}
}

// ListenAddr returns the formatted listen address for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}
