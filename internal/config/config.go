package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	SlackBotToken     string
	SlackAppToken     string
	GeminiAPIKey      string
	SummaryChannel    string
	PulseChannel      string
	MonitoredChannels []string
	ReminderThreshold time.Duration
	QuietThreshold    time.Duration
	WorkingHoursStart int
	WorkingHoursEnd   int
	Location          *time.Location
	DataDir           string
	Port              string
	LogLevel          string
}

func Load() *Config {
	_ = godotenv.Load()

	required := []string{
		"SLACK_BOT_TOKEN",
		"SLACK_APP_TOKEN",
		"GEMINI_API_KEY",
		"SUMMARY_CHANNEL",
	}

	var missing []string
	for _, key := range required {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		log.Fatal().Msgf("Missing required environment variables: %s", strings.Join(missing, ", "))
	}

	botToken := os.Getenv("SLACK_BOT_TOKEN")
	appToken := os.Getenv("SLACK_APP_TOKEN")
	if !strings.HasPrefix(botToken, "xoxb-") {
		log.Fatal().Msg("SLACK_BOT_TOKEN must be a bot token (xoxb-)")
	}
	if !strings.HasPrefix(appToken, "xapp-") {
		log.Fatal().Msg("SLACK_APP_TOKEN must be an app-level token (xapp-)")
	}

	tzName := getEnv("TIMEZONE", "Europe/Berlin")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", tzName).Msg("Invalid TIMEZONE")
	}

	summaryChannel := os.Getenv("SUMMARY_CHANNEL")

	return &Config{
		SlackBotToken:     botToken,
		SlackAppToken:     appToken,
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		SummaryChannel:    summaryChannel,
		PulseChannel:      getEnv("PULSE_CHANNEL", summaryChannel),
		MonitoredChannels: splitList(os.Getenv("MONITORED_CHANNELS")),
		ReminderThreshold: time.Duration(getEnvInt("QUESTION_REMINDER_MINUTES", 30)) * time.Minute,
		QuietThreshold:    time.Duration(getEnvInt("QUIET_THRESHOLD_HOURS", 24)) * time.Hour,
		WorkingHoursStart: getEnvInt("WORKING_HOURS_START", 9),
		WorkingHoursEnd:   getEnvInt("WORKING_HOURS_END", 17),
		Location:          loc,
		DataDir:           getEnv("DATA_DIR", "data"),
		Port:              getEnv("PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}
}

// InWorkingHours reports whether t falls on a weekday inside the configured hours.
func (c *Config) InWorkingHours(t time.Time) bool {
	local := t.In(c.Location)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return local.Hour() >= c.WorkingHoursStart && local.Hour() < c.WorkingHoursEnd
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Fatal().Str("key", key).Str("value", value).Msg("Expected an integer environment variable")
	}
	return n
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
