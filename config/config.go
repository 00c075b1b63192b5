package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// defaultUserAgent is a current desktop Chrome string; several providers
// serve a stripped page or a 403 to anything that looks like a bot.
const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Config holds all application configuration loaded from environment variables.
// It is built once in main and passed down by pointer; nothing mutates it
// after Load returns.
type Config struct {
	// Outbound HTTP
	ProxyURL      string
	UserAgents    []string
	HTTPTimeout   time.Duration
	SourceTimeout time.Duration
	CacheTTL      time.Duration
	CacheSize     int
	RedisAddr     string
	RedisDB       int

	// Listing aggregation
	DefaultCurrency string
	MinListingPrice float64
	MaxConcurrency  int
	RateLimitMs     int

	// Marketplaces
	EbayToken       string
	EbayMarketplace string
	EbayBaseURL     string
	ReverbToken     string
	ReverbBaseURL   string
	WallapopEnabled bool
	WallapopBaseURL string
	ChromeBin       string
	HispasonicURL   string

	// Spec sources
	CatalogBaseURL      string
	SpecAPIBaseURL      string
	SpecAPIKey          string
	VintageSynthBaseURL string

	// Enrichment
	GeminiAPIKey        string
	GeminiModel         string
	MinSpecsBeforeAI    int
	ParentSpecThreshold int
	FiltersFile         string
	PromptTemplate      string

	// Storage
	PriceGuideDSN string
	CSVOutputPath string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() *Config {
	return &Config{
		ProxyURL:      getEnv("PROXY_URL", ""),
		UserAgents:    getEnvList("USER_AGENTS", []string{defaultUserAgent}),
		HTTPTimeout:   time.Duration(getEnvInt("HTTP_TIMEOUT_SEC", 20)) * time.Second,
		SourceTimeout: time.Duration(getEnvInt("SOURCE_TIMEOUT_SEC", 45)) * time.Second,
		CacheTTL:      time.Duration(getEnvInt("CACHE_TTL_MIN", 60)) * time.Minute,
		CacheSize:     getEnvInt("CACHE_SIZE", 512),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		DefaultCurrency: strings.ToUpper(getEnv("DEFAULT_CURRENCY", "EUR")),
		MinListingPrice: getEnvFloat("MIN_LISTING_PRICE", 20),
		MaxConcurrency:  getEnvInt("MAX_CONCURRENCY", 4),
		RateLimitMs:     getEnvInt("RATE_LIMIT_MS", 0),

		EbayToken:       getEnv("EBAY_TOKEN", ""),
		EbayMarketplace: getEnv("EBAY_MARKETPLACE", "EBAY_ES"),
		EbayBaseURL:     getEnv("EBAY_BASE_URL", "https://api.ebay.com"),
		ReverbToken:     getEnv("REVERB_TOKEN", ""),
		ReverbBaseURL:   getEnv("REVERB_BASE_URL", "https://api.reverb.com"),
		WallapopEnabled: getEnvBool("WALLAPOP_ENABLED", false),
		WallapopBaseURL: getEnv("WALLAPOP_BASE_URL", "https://es.wallapop.com"),
		ChromeBin:       getEnv("CHROME_BIN", ""),
		HispasonicURL:   getEnv("HISPASONIC_BASE_URL", "https://www.hispasonic.com"),

		CatalogBaseURL:      getEnv("CATALOG_BASE_URL", ""),
		SpecAPIBaseURL:      getEnv("SPECAPI_BASE_URL", ""),
		SpecAPIKey:          getEnv("SPECAPI_KEY", ""),
		VintageSynthBaseURL: getEnv("VINTAGESYNTH_BASE_URL", "https://www.vintagesynth.com"),

		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		MinSpecsBeforeAI:    getEnvInt("MIN_SPECS_BEFORE_AI", 3),
		ParentSpecThreshold: getEnvInt("PARENT_SPEC_THRESHOLD", 5),
		FiltersFile:         getEnv("FILTERS_FILE", ""),
		PromptTemplate:      getEnv("PROMPT_TEMPLATE", ""),

		PriceGuideDSN: getEnv("PRICEGUIDE_DSN", ""),
		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", ""),
	}
}

// UserAgent picks the user agent for the n-th request, rotating through
// the configured list.
func (c *Config) UserAgent(n int) string {
	if len(c.UserAgents) == 0 {
		return defaultUserAgent
	}
	if n < 0 {
		n = -n
	}
	return c.UserAgents[n%len(c.UserAgents)]
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

// getEnvList splits on "|" because user agent strings contain commas.
func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, "|") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
