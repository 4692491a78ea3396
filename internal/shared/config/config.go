package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port               string
	CORSAllowOrigin    []string
	Env                string
	LogLevel           string
	DatabaseURL        string
	ObjectStoreType    string
	LocalStoreDir      string
	AWSRegion          string
	S3Bucket           string
	S3Prefix           string
	SSEKMSKeyID        string
	QueueURL           string
	LLMProvider        string
	LLMModel           string
	OpenAIAPIKey       string
	GigaChatAPIKey     string
	GigaChatScope      string
	GigaChatModel      string
	GigaChatInsecure   bool
	IntakeServiceURL   string
	IntakeServiceToken string
	CaseStoreURL       string
	CaseStoreToken     string
	QuestionBankPath   string
	ServiceTimeout     time.Duration
	HandoffTimeout     time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Local env files are optional; real deployments set the environment directly.
	for _, path := range []string{".env", "cmd/.env"} {
		_ = godotenv.Load(path)
	}

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:               getEnv("PORT", "8080"),
		CORSAllowOrigin:    splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000")),
		Env:                env,
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseURL:        dbURL,
		ObjectStoreType:    normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:      getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:          getEnv("AWS_REGION", ""),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		S3Prefix:           getEnv("S3_PREFIX", "intake/"),
		SSEKMSKeyID:        getEnv("SSE_KMS_KEY_ID", ""),
		QueueURL:           getEnv("INTAKE_SQS_QUEUE_URL", ""),
		LLMProvider:        normalizeProvider(getEnv("LLM_PROVIDER", "openai")),
		LLMModel:           getEnv("LLM_MODEL", "gpt-4o-mini"),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		GigaChatAPIKey:     getEnv("GIGACHAT_API_KEY", ""),
		GigaChatScope:      getEnv("GIGACHAT_SCOPE", "GIGACHAT_API_PERS"),
		GigaChatModel:      getEnv("GIGACHAT_MODEL", "GigaChat"),
		GigaChatInsecure:   strings.EqualFold(getEnv("GIGACHAT_INSECURE_SKIP_VERIFY", "false"), "true"),
		IntakeServiceURL:   getEnv("INTAKE_SERVICE_URL", ""),
		IntakeServiceToken: getEnv("INTAKE_SERVICE_TOKEN", ""),
		CaseStoreURL:       getEnv("CASE_STORE_URL", ""),
		CaseStoreToken:     getEnv("CASE_STORE_TOKEN", ""),
		QuestionBankPath:   getEnv("QUESTION_BANK_PATH", ""),
		ServiceTimeout:     getDuration("SERVICE_TIMEOUT", 30*time.Second),
		HandoffTimeout:     getDuration("HANDOFF_TIMEOUT", 10*time.Second),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val <= 0 {
		log.Printf("config %s invalid duration %q, using %s", key, raw, def)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "openai":
		return "openai"
	case "remote", "http":
		return "remote"
	case "gigachat":
		return "gigachat"
	default:
		return "none"
	}
}

// IsDevLike reports whether env allows in-memory fallbacks for missing infrastructure.
func IsDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
