package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App      AppConfig
	DB       DBConfig
	JWT      JWTConfig
	HTTP     HTTPConfig
	AI       AIConfig
	Sources  SourcesConfig
	Pipeline PipelineConfig
	Trigger  TriggerConfig
	Redis    RedisConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// DBConfig configuración de PostgreSQL.
// Si DatabaseURL no está vacío, se usa como connection string completo (ej. DATABASE_URL de Supabase).
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
}

// ConnectionString devuelve el DSN a usar: DATABASE_URL si está definido, si no el construido con DSN().
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN devuelve el connection string para PostgreSQL con URL encoding para caracteres especiales.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// JWTConfig configuración de JWT para los disparadores manuales.
type JWTConfig struct {
	Secret     string
	Expiration int // minutos
	Issuer     string
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host        string
	Port        int
	SwaggerPath string // archivo OpenAPI servido en /docs (vacío o inexistente = deshabilitado)
	CORSOrigins string // lista separada por comas; "*" = cualquiera
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AIConfig configuración del servicio de razonamiento.
type AIConfig struct {
	Provider        string // anthropic | gemini | none
	AnthropicAPIKey string
	AnthropicModel  string
	GeminiAPIKey    string
	GeminiModel     string
	Timeout         time.Duration
}

// SourcesConfig fuentes externas de datos (registro de desabastecimiento y noticias).
type SourcesConfig struct {
	FDAURL       string
	NewsURL      string
	NewsAPIKey   string
	Timeout      time.Duration
	Retries      int
	NewsLookback time.Duration
}

// PipelineConfig parámetros de la corrida.
type PipelineConfig struct {
	Interval            time.Duration
	CollectorLimit      int
	ShortageRecencyDays int
	ShortageLookback    time.Duration
	SurgeryHorizon      time.Duration
	CatalogPath         string
}

// TriggerConfig parámetros del gate reactivo.
// SelfWrites < 0 arma el contador con las filas de drugs que la corrida completa va a escribir;
// >= 0 usa ese valor fijo.
type TriggerConfig struct {
	Enabled     bool
	Table       string
	Channel     string
	MinInterval time.Duration
	SelfWrites  int
}

// RedisConfig canal de notificación de corridas. Addr vacío deshabilita la publicación.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo).
// Las env vars tienen prioridad. Nombres esperados: APP_ENV, DB_HOST, AI_PROVIDER, TRIGGER_MIN_INTERVAL, etc.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "pharma-sentinel"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
		},
		DB: DBConfig{
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", "localhost"),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "pharma_sentinel"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:     getString(v, "JWT_SECRET", ""),
			Expiration: getInt(v, "JWT_EXPIRATION_MINUTES", 60),
			Issuer:     getString(v, "JWT_ISSUER", "pharma-sentinel"),
		},
		HTTP: HTTPConfig{
			Host:        getString(v, "HTTP_HOST", "0.0.0.0"),
			Port:        getInt(v, "HTTP_PORT", 8080),
			SwaggerPath: getString(v, "SWAGGER_PATH", "./docs/swagger.json"),
			CORSOrigins: getString(v, "CORS_ORIGINS", "*"),
		},
		AI: AIConfig{
			Provider:        getString(v, "AI_PROVIDER", "anthropic"),
			AnthropicAPIKey: getString(v, "ANTHROPIC_API_KEY", ""),
			AnthropicModel:  getString(v, "ANTHROPIC_MODEL", "claude-3-5-sonnet-latest"),
			GeminiAPIKey:    getString(v, "GEMINI_API_KEY", ""),
			GeminiModel:     getString(v, "GEMINI_MODEL", "gemini-1.5-flash"),
			Timeout:         getDuration(v, "AI_TIMEOUT", 60*time.Second),
		},
		Sources: SourcesConfig{
			FDAURL:       getString(v, "FDA_SHORTAGES_URL", "https://api.fda.gov/drug/shortages.json"),
			NewsURL:      getString(v, "NEWS_API_URL", "https://newsapi.org/v2/everything"),
			NewsAPIKey:   getString(v, "NEWS_API_KEY", ""),
			Timeout:      getDuration(v, "SOURCES_TIMEOUT", 30*time.Second),
			Retries:      getInt(v, "SOURCES_RETRIES", 2),
			NewsLookback: getDuration(v, "NEWS_LOOKBACK", 7*24*time.Hour),
		},
		Pipeline: PipelineConfig{
			Interval:            getDuration(v, "PIPELINE_INTERVAL", 60*time.Minute),
			CollectorLimit:      getInt(v, "PIPELINE_COLLECTOR_LIMIT", 3),
			ShortageRecencyDays: getInt(v, "SHORTAGE_RECENCY_DAYS", 30),
			ShortageLookback:    getDuration(v, "SHORTAGE_LOOKBACK", 180*24*time.Hour),
			SurgeryHorizon:      getDuration(v, "SURGERY_HORIZON", 30*24*time.Hour),
			CatalogPath:         getString(v, "CATALOG_PATH", "./config/monitored_drugs.yaml"),
		},
		Trigger: TriggerConfig{
			Enabled:     getBool(v, "TRIGGER_ENABLED", true),
			Table:       getString(v, "TRIGGER_TABLE", "drugs"),
			Channel:     getString(v, "TRIGGER_CHANNEL", "drug_changes"),
			MinInterval: getDuration(v, "TRIGGER_MIN_INTERVAL", 10*time.Second),
			SelfWrites:  getInt(v, "TRIGGER_SELF_WRITES", -1),
		},
		Redis: RedisConfig{
			Addr:     getString(v, "REDIS_ADDR", ""),
			Password: getString(v, "REDIS_PASSWORD", ""),
			DB:       getInt(v, "REDIS_DB", 0),
			Channel:  getString(v, "REDIS_CHANNEL", "pharma-sentinel:runs"),
		},
	}

	if cfg.Pipeline.CollectorLimit <= 0 {
		return nil, fmt.Errorf("config: PIPELINE_COLLECTOR_LIMIT debe ser > 0")
	}
	if cfg.Trigger.MinInterval < 0 {
		return nil, fmt.Errorf("config: TRIGGER_MIN_INTERVAL no puede ser negativo")
	}
	return cfg, nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
			if err != nil {
				return def
			}
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}

func getBool(v *viper.Viper, key string, def bool) bool {
	if v.IsSet(key) {
		return v.GetBool(key)
	}
	return def
}

// getDuration acepta "90s", "5m" o un entero (segundos).
func getDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	if !v.IsSet(key) {
		return def
	}
	raw := strings.TrimSpace(v.GetString(key))
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
