package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Mode selects what the exporter writes for each folder.
type Mode string

const (
	ModeMbox Mode = "mbox"
	ModeEml  Mode = "eml"
	ModeBoth Mode = "both"
)

type Config struct {
	BaseURL  string
	ClientID string
	TokenURL string
	AuthURL  string

	TokenPath  string
	LedgerPath string
	OutputDir  string
	LogFile    string

	Mode               Mode
	RootFolder         string
	IncludeAttachments bool
	PreserveHierarchy  bool
	RecompressImages   bool
	ImageWorkers       int
	PageSize           int
}

// Load reads configuration from a .env file (if present) and the process
// environment.
func Load() Config {
	godotenv.Load()

	dataDir := getEnvString("MAILFERRY_DATA_DIR", defaultDataDir())
	return Config{
		BaseURL:  getEnvString("MAILFERRY_BASE_URL", ""),
		ClientID: getEnvString("MAILFERRY_CLIENT_ID", ""),
		TokenURL: getEnvString("MAILFERRY_TOKEN_URL", ""),
		AuthURL:  getEnvString("MAILFERRY_AUTH_URL", ""),

		TokenPath:  getEnvString("MAILFERRY_TOKEN_PATH", filepath.Join(dataDir, "token.json")),
		LedgerPath: getEnvString("MAILFERRY_LEDGER_PATH", filepath.Join(dataDir, "ledger.db")),
		OutputDir:  getEnvString("MAILFERRY_OUTPUT_DIR", "export"),
		LogFile:    getEnvString("MAILFERRY_LOG_FILE", filepath.Join(dataDir, "mailferry.log")),

		Mode:               Mode(getEnvString("MAILFERRY_MODE", string(ModeMbox))),
		RootFolder:         getEnvString("MAILFERRY_ROOT_FOLDER", ""),
		IncludeAttachments: getEnvBool("MAILFERRY_ATTACHMENTS", true),
		PreserveHierarchy:  getEnvBool("MAILFERRY_HIERARCHY", true),
		RecompressImages:   getEnvBool("MAILFERRY_RECOMPRESS_IMAGES", false),
		ImageWorkers:       getEnvInt("MAILFERRY_IMAGE_WORKERS", 4),
		PageSize:           getEnvInt("MAILFERRY_PAGE_SIZE", 100),
	}
}

// Validate checks the fields a run cannot proceed without.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("MAILFERRY_BASE_URL is required")
	}
	if c.ClientID == "" {
		return fmt.Errorf("MAILFERRY_CLIENT_ID is required")
	}
	if c.TokenURL == "" {
		return fmt.Errorf("MAILFERRY_TOKEN_URL is required")
	}
	switch c.Mode {
	case ModeMbox, ModeEml, ModeBoth:
	default:
		return fmt.Errorf("invalid mode %q: must be mbox, eml or both", c.Mode)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("page size must be positive, got %d", c.PageSize)
	}
	if c.ImageWorkers < 1 {
		return fmt.Errorf("image workers must be positive, got %d", c.ImageWorkers)
	}
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mailferry"
	}
	return filepath.Join(home, ".mailferry")
}

func getEnvString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err == nil {
			return parsed
		}
	}
	return fallback
}
