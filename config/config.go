package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/cppla/pointsplay/services"
)

// AppConfig holds configuration values. Secrets have no defaults in code and must come from
// config/config.json, a .env file or the environment.
type AppConfig struct {
	AppPort            string   `json:"AppPort" env:"APP_PORT"`
	JWTSecret          string   `json:"JWTSecret" env:"JWT_SECRET"`
	RateLimitPerMinute int      `json:"RateLimitPerMinute" env:"RATE_LIMIT_PER_MINUTE"`
	AllowedOrigins     []string `json:"AllowedOrigins" env:"ALLOWED_ORIGINS"`
	AdminUsernames     []string `json:"AdminUsernames" env:"ADMIN_USERNAMES"`

	// Gin framework configuration
	GinMode string `json:"GinMode" env:"GIN_MODE"`
	GinPath string `json:"GinPath" env:"GIN_PATH"`

	// Database: mysql (default) or sqlite
	DBDriver    string `json:"DBDriver" env:"DB_DRIVER"`
	DatabaseURI string `json:"DatabaseURI" env:"DATABASE_URI"`
	DBHost      string `json:"DBHost" env:"DB_HOST"`
	DBPort      string `json:"DBPort" env:"DB_PORT"`
	DBUser      string `json:"DBUser" env:"DB_USER"`
	DBPassword  string `json:"DBPassword" env:"DB_PASSWORD"`
	DBName      string `json:"DBName" env:"DB_NAME"`
	SQLitePath  string `json:"SQLitePath" env:"SQLITE_PATH"`

	// Redis backs token revocation, registration limits and cross-node events
	RedisEnabled  bool   `json:"RedisEnabled" env:"REDIS_ENABLED"`
	RedisHost     string `json:"RedisHost" env:"REDIS_HOST"`
	RedisPort     int    `json:"RedisPort" env:"REDIS_PORT"`
	RedisDB       int    `json:"RedisDB" env:"REDIS_DB"`
	RedisPassword string `json:"RedisPassword" env:"REDIS_PASSWORD"`
	EventsChannel string `json:"EventsChannel" env:"EVENTS_CHANNEL"`

	// Logging configuration
	LogLevel      string `json:"LogLevel" env:"LOG_LEVEL"`
	LogPath       string `json:"LogPath" env:"LOG_PATH"`
	LogMaxSizeMB  int    `json:"LogMaxSizeMB" env:"LOG_MAX_SIZE_MB"`
	LogMaxBackups int    `json:"LogMaxBackups" env:"LOG_MAX_BACKUPS"`
	LogMaxAgeDays int    `json:"LogMaxAgeDays" env:"LOG_MAX_AGE_DAYS"`
	LogCompress   bool   `json:"LogCompress" env:"LOG_COMPRESS"`

	// Registration security
	RegisterMaxPerIPPerDay        int `json:"RegisterMaxPerIPPerDay" env:"REGISTER_MAX_PER_IP_PER_DAY"`
	RegisterAttemptCooldownSec    int `json:"RegisterAttemptCooldownSec" env:"REGISTER_ATTEMPT_COOLDOWN_SEC"`
	RegisterFailedMaxPerIPPerHour int `json:"RegisterFailedMaxPerIPPerHour" env:"REGISTER_FAILED_MAX_PER_IP_PER_HOUR"`
	RegisterTempBanMinutes        int `json:"RegisterTempBanMinutes" env:"REGISTER_TEMP_BAN_MINUTES"`

	// Settlement rules
	StreakBonusEvery        int    `json:"StreakBonusEvery" env:"STREAK_BONUS_EVERY"`
	StreakBonusPoints       int64  `json:"StreakBonusPoints" env:"STREAK_BONUS_POINTS"`
	ReferralThreshold       int    `json:"ReferralThreshold" env:"REFERRAL_THRESHOLD"`
	ReferralBonusPoints     int64  `json:"ReferralBonusPoints" env:"REFERRAL_BONUS_POINTS"`
	ReferralMilestoneEvery  int    `json:"ReferralMilestoneEvery" env:"REFERRAL_MILESTONE_EVERY"`
	ReferralMilestonePoints int64  `json:"ReferralMilestonePoints" env:"REFERRAL_MILESTONE_POINTS"`
	PredictionPayoutRatio   string `json:"PredictionPayoutRatio" env:"PREDICTION_PAYOUT_RATIO"`
	Timezone                string `json:"Timezone" env:"TIMEZONE"`

	// Gemini bonus suggestions; disabled without a key
	GeminiAPIKey string `json:"GeminiAPIKey" env:"GEMINI_API_KEY"`
	GeminiModel  string `json:"GeminiModel" env:"GEMINI_MODEL"`
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}
	c, err := LoadFrom(filepath.Join("config", "config.json"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg = c
	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// LoadFrom builds a configuration. Precedence: the JSON file at path, then a .env file and
// environment variables, then defaults for whatever is still unset.
func LoadFrom(path string) (AppConfig, error) {
	var c AppConfig
	if err := loadJSONConfig(path, &c); err != nil {
		return c, fmt.Errorf("parse %s: %w", path, err)
	}

	// .env is optional; variables already in the environment win over it
	_ = godotenv.Load()
	if err := env.Parse(&c); err != nil {
		return c, fmt.Errorf("parse environment: %w", err)
	}

	applyDefaults(&c)
	if err := c.validate(); err != nil {
		return c, err
	}
	return c, nil
}

// loadJSONConfig reads the JSON file into out if present. Keys may be flat or grouped into
// sections ({"app": {...}, "database": {...}}). A missing file is not an error.
func loadJSONConfig(path string, out *AppConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return err
	}
	for _, section := range raw {
		trimmed := strings.TrimSpace(string(section))
		if strings.HasPrefix(trimmed, "{") {
			if err := json.Unmarshal(section, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "pointsplay"
	}
	if c.SQLitePath == "" {
		c.SQLitePath = "data/pointsplay.db"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.EventsChannel == "" {
		c.EventsChannel = "points:balance-changed"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogPath == "" {
		c.LogPath = "logs/app.log"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	// Registration hardening defaults
	if c.RegisterMaxPerIPPerDay == 0 {
		c.RegisterMaxPerIPPerDay = 5
	}
	if c.RegisterAttemptCooldownSec == 0 {
		c.RegisterAttemptCooldownSec = 10
	}
	if c.RegisterFailedMaxPerIPPerHour == 0 {
		c.RegisterFailedMaxPerIPPerHour = 20
	}
	if c.RegisterTempBanMinutes == 0 {
		c.RegisterTempBanMinutes = 60
	}

	def := services.DefaultSettings()
	if c.StreakBonusEvery == 0 {
		c.StreakBonusEvery = def.StreakBonusEvery
	}
	if c.StreakBonusPoints == 0 {
		c.StreakBonusPoints = def.StreakBonusPoints
	}
	if c.ReferralThreshold == 0 {
		c.ReferralThreshold = def.ReferralThreshold
	}
	if c.ReferralBonusPoints == 0 {
		c.ReferralBonusPoints = def.ReferralBonusPoints
	}
	if c.ReferralMilestoneEvery == 0 {
		c.ReferralMilestoneEvery = def.ReferralMilestoneEvery
	}
	if c.ReferralMilestonePoints == 0 {
		c.ReferralMilestonePoints = def.ReferralMilestonePoints
	}
	if c.PredictionPayoutRatio == "" {
		c.PredictionPayoutRatio = def.PayoutRatio.String()
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.GeminiModel == "" {
		c.GeminiModel = "gemini-2.5-flash"
	}
}

func (c *AppConfig) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	switch c.DBDriver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	ratio, err := decimal.NewFromString(c.PredictionPayoutRatio)
	if err != nil || !ratio.IsPositive() {
		return fmt.Errorf("PREDICTION_PAYOUT_RATIO must be a positive decimal, got %q", c.PredictionPayoutRatio)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// SettlementSettings converts the settlement knobs into engine settings.
func (c AppConfig) SettlementSettings() services.Settings {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		loc = time.Local
	}
	return services.Settings{
		StreakBonusEvery:        c.StreakBonusEvery,
		StreakBonusPoints:       c.StreakBonusPoints,
		ReferralThreshold:       c.ReferralThreshold,
		ReferralBonusPoints:     c.ReferralBonusPoints,
		ReferralMilestoneEvery:  c.ReferralMilestoneEvery,
		ReferralMilestonePoints: c.ReferralMilestonePoints,
		PayoutRatio:             decimal.RequireFromString(c.PredictionPayoutRatio),
		Location:                loc,
	}
}

// IsAdminUsername reports whether username is listed in AdminUsernames.
func (c AppConfig) IsAdminUsername(username string) bool {
	for _, name := range c.AdminUsernames {
		if strings.EqualFold(strings.TrimSpace(name), username) {
			return true
		}
	}
	return false
}
