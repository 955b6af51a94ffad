package config

// Constants defining default values for application configuration
const (
	DefaultDBPath = "./contenthub.db"

	DefaultServerPort = 8080
	DefaultServerHost = "" // Empty string means all interfaces

	// DefaultMaxImportItems caps one import batch.
	DefaultMaxImportItems = 1000

	DefaultPerKeyword      = 20 // Items collected per keyword per platform
	DefaultCommentsPerPost = 10 // Top-level comments fetched per post

	DefaultRSSHubBase = "https://rsshub.app"

	DefaultLogLevel = "debug"
)

// RSSHubRoutes maps platform slugs to their keyword search routes, relative
// to the RSSHub base URL. %s receives the escaped keyword.
var RSSHubRoutes = map[string]string{
	"douyin":      "/douyin/search/%s",
	"xiaohongshu": "/xiaohongshu/search/notes/%s",
}
