package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// ClientType selects the backend collaborator.
type ClientType string

const (
	ClientHTTP       ClientType = "http"
	ClientCloud      ClientType = "cloud"
	ClientPersistent ClientType = "persistent"
	ClientEphemeral  ClientType = "ephemeral"
	ClientSurreal    ClientType = "surreal"
)

// ClientTypes lists the accepted client types.
var ClientTypes = []ClientType{ClientHTTP, ClientCloud, ClientPersistent, ClientEphemeral, ClientSurreal}

// Transport values.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config holds all configuration values.
type Config struct {
	// Chroma client
	ClientType            ClientType
	DataDir               string
	Host                  string
	Port                  int
	CustomAuthCredentials string
	Tenant                string
	Database              string
	APIKey                string
	SSL                   bool
	DotenvPath            string

	// Embedding functions
	EmbeddingFunction string
	OllamaHost        string
	OllamaModel       string
	OpenAIAPIKey      string
	OpenAIModel       string
	VoyageAPIKey      string

	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Logging
	LogFile  string
	LogLevel slog.Level

	// MCP transport
	Transport string
	Listen    string

	// Tracing
	OTLPEndpoint string
}

type setting struct {
	flag  string
	env   string
	def   string
	usage string
}

// settings maps every flag to its environment variable. Precedence: flag, environment,
// dotenv file, default.
var settings = []setting{
	{"client-type", "CHROMA_CLIENT_TYPE", string(ClientEphemeral), "Client type: http, cloud, persistent, ephemeral or surreal"},
	{"data-dir", "CHROMA_DATA_DIR", "", "Directory for the persistent client"},
	{"host", "CHROMA_HOST", "", "Chroma host for the HTTP client"},
	{"port", "CHROMA_PORT", "", "Chroma port for the HTTP client"},
	{"custom-auth-credentials", "CHROMA_CUSTOM_AUTH_CREDENTIALS", "", "Credentials for the HTTP client as user:password"},
	{"tenant", "CHROMA_TENANT", "", "Tenant for the cloud client"},
	{"database", "CHROMA_DATABASE", "", "Database for the cloud client"},
	{"api-key", "CHROMA_API_KEY", "", "API key for the cloud client"},
	{"ssl", "CHROMA_SSL", "true", "Use SSL for the HTTP client"},
	{"dotenv-path", "CHROMA_DOTENV_PATH", ".chroma_env", "Path to the dotenv file"},
	{"embedding-function", "CHROMA_EMBEDDING_FUNCTION", "default", "Embedding function for new collections"},
	{"ollama-host", "OLLAMA_HOST", "http://localhost:11434", "Ollama server URL"},
	{"ollama-model", "CHROMA_OLLAMA_MODEL", "", "Ollama embedding model"},
	{"openai-api-key", "OPENAI_API_KEY", "", "OpenAI API key"},
	{"openai-model", "CHROMA_OPENAI_MODEL", "", "OpenAI embedding model"},
	{"voyage-api-key", "VOYAGE_API_KEY", "", "Voyage AI API key"},
	{"surrealdb-url", "SURREALDB_URL", "", "SurrealDB websocket URL for the surreal client"},
	{"surrealdb-namespace", "SURREALDB_NAMESPACE", "chroma", "SurrealDB namespace"},
	{"surrealdb-database", "SURREALDB_DATABASE", "chroma", "SurrealDB database"},
	{"surrealdb-user", "SURREALDB_USER", "root", "SurrealDB user"},
	{"surrealdb-pass", "SURREALDB_PASS", "root", "SurrealDB password"},
	{"surrealdb-auth-level", "SURREALDB_AUTH_LEVEL", "root", "SurrealDB auth level: root or database"},
	{"log-file", "CHROMA_MCP_LOG_FILE", "", "JSON log file"},
	{"log-level", "CHROMA_MCP_LOG_LEVEL", "INFO", "Log level: DEBUG, INFO, WARN or ERROR"},
	{"transport", "CHROMA_MCP_TRANSPORT", TransportStdio, "MCP transport: stdio or http"},
	{"listen", "CHROMA_MCP_LISTEN", ":8765", "Listen address for the http transport"},
	{"otlp-endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT", "", "OTLP/HTTP trace endpoint"},
}

// RegisterFlags adds one flag per setting to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	for _, s := range settings {
		usage := fmt.Sprintf("%s (env %s)", s.usage, s.env)
		if s.def != "" {
			usage += fmt.Sprintf(" (default %q)", s.def)
		}
		fs.String(s.flag, "", usage)
	}
	fs.Lookup("ssl").NoOptDefVal = "true"
}

// Load reads configuration from flags and the environment. The dotenv file is loaded first;
// variables already set in the environment win over it. fs may be nil.
func Load(fs *pflag.FlagSet, log *slog.Logger) (Config, error) {
	lookup := func(env string) string {
		return lookupFlag(fs, env)
	}

	path := lookup("CHROMA_DOTENV_PATH")
	if _, err := os.Stat(path); err == nil {
		if err := godotenv.Load(path); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
		log.Debug("loaded environment file", "path", path)
	} else {
		log.Warn("environment file not found, using defaults", "path", path)
	}

	return FromLookup(lookup)
}

func lookupFlag(fs *pflag.FlagSet, env string) string {
	for _, s := range settings {
		if s.env != env {
			continue
		}
		if fs != nil {
			if f := fs.Lookup(s.flag); f != nil && f.Changed {
				return f.Value.String()
			}
		}
		return getEnv(s.env, s.def)
	}
	return os.Getenv(env)
}

// FromLookup builds a Config from a key lookup. Missing keys must return "".
func FromLookup(lookup func(string) string) (Config, error) {
	get := func(env string) string {
		if v := lookup(env); v != "" {
			return v
		}
		for _, s := range settings {
			if s.env == env {
				return s.def
			}
		}
		return ""
	}

	cfg := Config{
		ClientType:            ClientType(strings.ToLower(get("CHROMA_CLIENT_TYPE"))),
		DataDir:               get("CHROMA_DATA_DIR"),
		Host:                  get("CHROMA_HOST"),
		CustomAuthCredentials: get("CHROMA_CUSTOM_AUTH_CREDENTIALS"),
		Tenant:                get("CHROMA_TENANT"),
		Database:              get("CHROMA_DATABASE"),
		APIKey:                get("CHROMA_API_KEY"),
		DotenvPath:            get("CHROMA_DOTENV_PATH"),

		EmbeddingFunction: get("CHROMA_EMBEDDING_FUNCTION"),
		OllamaHost:        get("OLLAMA_HOST"),
		OllamaModel:       get("CHROMA_OLLAMA_MODEL"),
		OpenAIAPIKey:      get("OPENAI_API_KEY"),
		OpenAIModel:       get("CHROMA_OPENAI_MODEL"),
		VoyageAPIKey:      get("VOYAGE_API_KEY"),

		SurrealDBURL:       get("SURREALDB_URL"),
		SurrealDBNamespace: get("SURREALDB_NAMESPACE"),
		SurrealDBDatabase:  get("SURREALDB_DATABASE"),
		SurrealDBUser:      get("SURREALDB_USER"),
		SurrealDBPass:      get("SURREALDB_PASS"),
		SurrealDBAuthLevel: get("SURREALDB_AUTH_LEVEL"),

		LogFile: get("CHROMA_MCP_LOG_FILE"),

		Transport: strings.ToLower(get("CHROMA_MCP_TRANSPORT")),
		Listen:    get("CHROMA_MCP_LISTEN"),

		OTLPEndpoint: get("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if p := get("CHROMA_PORT"); p != "" {
		port, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CHROMA_PORT %q: %w", p, err)
		}
		cfg.Port = int(port)
	}
	level, err := ParseLogLevel(get("CHROMA_MCP_LOG_LEVEL"))
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel = level
	ssl, err := strconv.ParseBool(get("CHROMA_SSL"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid CHROMA_SSL %q: %w", get("CHROMA_SSL"), err)
	}
	cfg.SSL = ssl

	return cfg, nil
}

// Validate enforces the per-client-type requirements.
func (c Config) Validate() error {
	switch c.ClientType {
	case ClientHTTP:
		if c.Host == "" {
			return errors.New("Host must be provided for HTTP client")
		}
	case ClientCloud:
		if c.Tenant == "" {
			return errors.New("Tenant must be provided for cloud client")
		}
		if c.Database == "" {
			return errors.New("Database must be provided for cloud client")
		}
		if c.APIKey == "" {
			return errors.New("API key must be provided for cloud client")
		}
	case ClientPersistent:
		if c.DataDir == "" {
			return errors.New("Data directory must be provided for persistent client")
		}
	case ClientSurreal:
		if c.SurrealDBURL == "" {
			return errors.New("SurrealDB URL must be provided for surreal client")
		}
	case ClientEphemeral:
	default:
		return fmt.Errorf("unknown client type %q", c.ClientType)
	}

	switch c.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
