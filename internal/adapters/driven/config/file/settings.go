package file

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driven"
)

// setting binds a config key, and optionally an environment variable, to a
// field of domain.Settings.
type setting struct {
	key string
	env string
	// field returns a pointer to the bound field.
	field func(*domain.Settings) any
	// fromEnv rewrites the environment value before it is parsed.
	fromEnv func(string) string
}

//nolint:gosec // G101: key names, not credentials.
var settingsTable = []setting{
	{key: "corpus.dir", env: "CORPUS_DIR", field: func(s *domain.Settings) any { return &s.Corpus.Dir }},
	{key: "corpus.tables_dir", field: func(s *domain.Settings) any { return &s.Corpus.TablesDir }},

	{key: "storage.backend", field: func(s *domain.Settings) any { return &s.Storage.Backend }},
	{key: "storage.data_dir", field: func(s *domain.Settings) any { return &s.Storage.DataDir }},
	{key: "storage.mongo_uri", env: "MONGO_URI", field: func(s *domain.Settings) any { return &s.Storage.MongoURI }},
	{key: "storage.mongo_database", env: "MONGO_DB", field: func(s *domain.Settings) any { return &s.Storage.MongoDatabase }},

	{key: "vector.backend", field: func(s *domain.Settings) any { return &s.VectorIndex.Backend }},
	{key: "vector.url", env: "QDRANT_URL", field: func(s *domain.Settings) any { return &s.VectorIndex.URL }},
	{key: "vector.api_key", env: "QDRANT_API_KEY", field: func(s *domain.Settings) any { return &s.VectorIndex.APIKey }},
	{key: "vector.database_url", env: "DATABASE_URL", field: func(s *domain.Settings) any { return &s.VectorIndex.DatabaseURL }},
	{key: "vector.collection", env: "COLLECTION_NAME", field: func(s *domain.Settings) any { return &s.VectorIndex.Collection }},

	{key: "embedding.provider", field: func(s *domain.Settings) any { return &s.Embedding.Provider }},
	{key: "embedding.model", env: "EMBEDDING_MODEL", field: func(s *domain.Settings) any { return &s.Embedding.Model }},
	{key: "embedding.base_url", field: func(s *domain.Settings) any { return &s.Embedding.BaseURL }},
	{key: "embedding.api_key", env: "OPENAI_API_KEY", field: func(s *domain.Settings) any { return &s.Embedding.APIKey }},
	{key: "embedding.requests_per_second", field: func(s *domain.Settings) any { return &s.Embedding.RequestsPerSecond }},

	{key: "llm.provider", field: func(s *domain.Settings) any { return &s.LLM.Provider }},
	{key: "llm.model", env: "GROQ_MODEL", field: func(s *domain.Settings) any { return &s.LLM.Model }},
	{key: "llm.base_url", field: func(s *domain.Settings) any { return &s.LLM.BaseURL }},
	{key: "llm.api_key", env: "GROQ_API_KEY", field: func(s *domain.Settings) any { return &s.LLM.APIKey }},
	{key: "llm.temperature", field: func(s *domain.Settings) any { return &s.LLM.Temperature }},
	{key: "llm.max_tokens", field: func(s *domain.Settings) any { return &s.LLM.MaxTokens }},
	{key: "llm.retries", field: func(s *domain.Settings) any { return &s.LLM.Retries }},
	{key: "llm.backoff", field: func(s *domain.Settings) any { return &s.LLM.Backoff }},
	{key: "llm.requests_per_second", field: func(s *domain.Settings) any { return &s.LLM.RequestsPerSecond }},

	{key: "rerank.url", env: "RERANK_URL", field: func(s *domain.Settings) any { return &s.Rerank.URL }},
	{key: "rerank.model", field: func(s *domain.Settings) any { return &s.Rerank.Model }},
	{key: "rerank.api_key", field: func(s *domain.Settings) any { return &s.Rerank.APIKey }},

	{key: "chunking.max_length", field: func(s *domain.Settings) any { return &s.Chunking.MaxLength }},
	{key: "chunking.table_threshold", field: func(s *domain.Settings) any { return &s.Chunking.TableThreshold }},

	{key: "sync.workers", field: func(s *domain.Settings) any { return &s.Sync.Workers }},
	{key: "sync.batch_size", field: func(s *domain.Settings) any { return &s.Sync.BatchSize }},
	{key: "sync.retries", field: func(s *domain.Settings) any { return &s.Sync.Retries }},
	{key: "sync.backoff", field: func(s *domain.Settings) any { return &s.Sync.Backoff }},

	{key: "history.redis_addr", env: "REDIS_ADDR", field: func(s *domain.Settings) any { return &s.History.RedisAddr }},
	{key: "history.redis_password", env: "REDIS_PASSWORD", field: func(s *domain.Settings) any { return &s.History.RedisPassword }},
	{key: "history.redis_db", field: func(s *domain.Settings) any { return &s.History.RedisDB }},
	{key: "history.ttl", field: func(s *domain.Settings) any { return &s.History.TTL }},
	{key: "history.max_turns", field: func(s *domain.Settings) any { return &s.History.MaxTurns }},

	{key: "queue.amqp_url", env: "AMQP_URL", field: func(s *domain.Settings) any { return &s.Queue.AMQPURL }},
	{key: "queue.name", field: func(s *domain.Settings) any { return &s.Queue.Queue }},

	{key: "server.addr", env: "PORT", field: func(s *domain.Settings) any { return &s.Server.Addr }, fromEnv: portAddr},
	{key: "server.report_base_url", env: "REPORT_BASE_URL", field: func(s *domain.Settings) any { return &s.Server.ReportBaseURL }},
	{key: "server.max_upload_bytes", field: func(s *domain.Settings) any { return &s.Server.MaxUploadBytes }},
}

// portAddr turns PORT=8080 into ":8080"; full addresses pass through.
func portAddr(v string) string {
	if strings.Contains(v, ":") {
		return v
	}
	return ":" + v
}

// SettingKeys returns every recognised config key, in table order.
func SettingKeys() []string {
	keys := make([]string, len(settingsTable))
	for i, st := range settingsTable {
		keys[i] = st.key
	}
	return keys
}

// SettingEnv returns the environment variable overriding a key, if any.
func SettingEnv(key string) string {
	for _, st := range settingsTable {
		if st.key == key {
			return st.env
		}
	}
	return ""
}

// SettingValue returns the value bound to key in s, formatted for display.
func SettingValue(s *domain.Settings, key string) (string, bool) {
	for _, st := range settingsTable {
		if st.key == key {
			return fmt.Sprint(reflect.ValueOf(st.field(s)).Elem().Interface()), true
		}
	}
	return "", false
}

// IsSecretSetting reports whether a key holds a credential.
func IsSecretSetting(key string) bool {
	return strings.HasSuffix(key, "api_key") || strings.HasSuffix(key, "password")
}

// LoadEnvFile loads KEY=value pairs from a .env file into the process
// environment. Variables already set win. A missing file is ignored.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadSettings layers defaults, the config store and the process
// environment into domain.Settings.
func LoadSettings(store driven.ConfigStore) (domain.Settings, error) {
	return LoadSettingsWithEnv(store, os.LookupEnv)
}

// LoadSettingsWithEnv is LoadSettings with an explicit environment lookup.
// A nil store means defaults plus environment.
func LoadSettingsWithEnv(store driven.ConfigStore, lookup func(string) (string, bool)) (domain.Settings, error) {
	settings := domain.DefaultSettings()

	var errs []error
	for _, st := range settingsTable {
		ptr := st.field(&settings)
		if store != nil {
			if raw, ok := store.Get(st.key); ok {
				if err := assign(ptr, raw); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", st.key, err))
				}
			}
		}
		if st.env == "" || lookup == nil {
			continue
		}
		if v, ok := lookup(st.env); ok && v != "" {
			if st.fromEnv != nil {
				v = st.fromEnv(v)
			}
			if err := assign(ptr, v); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", st.env, err))
			}
		}
	}
	if err := validateSettings(&settings); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return settings, fmt.Errorf("%w: %w", domain.ErrInvalidInput, errors.Join(errs...))
	}
	return settings, nil
}

// ParseSettingValue checks a raw string against a key's type and returns the
// value to store: strings stay strings, numbers and durations are typed.
func ParseSettingValue(key, raw string) (any, error) {
	for _, st := range settingsTable {
		if st.key != key {
			continue
		}
		probe := domain.DefaultSettings()
		ptr := st.field(&probe)
		if err := assign(ptr, raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
		}
		if err := validateSettings(&probe); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
		}
		switch p := ptr.(type) {
		case *int:
			return int64(*p), nil
		case *int64:
			return *p, nil
		case *float64:
			return *p, nil
		default:
			// Durations and enums are stored as their string form.
			return raw, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown key %q", domain.ErrInvalidInput, key)
}

// assign converts a TOML or environment value into the pointed-to field.
func assign(ptr, raw any) error {
	str, isString := raw.(string)
	switch p := ptr.(type) {
	case *string:
		if !isString {
			return fmt.Errorf("expected a string, got %T", raw)
		}
		*p = str
	case *domain.AIProvider:
		if !isString {
			return fmt.Errorf("expected a string, got %T", raw)
		}
		*p = domain.AIProvider(str)
	case *domain.StorageBackend:
		if !isString {
			return fmt.Errorf("expected a string, got %T", raw)
		}
		*p = domain.StorageBackend(str)
	case *domain.VectorBackend:
		if !isString {
			return fmt.Errorf("expected a string, got %T", raw)
		}
		*p = domain.VectorBackend(str)
	case *int:
		n, err := toInt(raw)
		if err != nil {
			return err
		}
		*p = int(n)
	case *int64:
		n, err := toInt(raw)
		if err != nil {
			return err
		}
		*p = n
	case *float64:
		switch v := raw.(type) {
		case float64:
			*p = v
		case int64:
			*p = float64(v)
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return fmt.Errorf("invalid number %q", v)
			}
			*p = f
		default:
			return fmt.Errorf("expected a number, got %T", raw)
		}
	case *time.Duration:
		switch v := raw.(type) {
		case string:
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("invalid duration %q", v)
			}
			*p = d
		case int64:
			*p = time.Duration(v) * time.Second
		default:
			return fmt.Errorf("expected a duration, got %T", raw)
		}
	default:
		return fmt.Errorf("unsupported field type %T", ptr)
	}
	return nil
}

func toInt(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected an integer, got %T", raw)
	}
}

func validateSettings(s *domain.Settings) error {
	var errs []error
	switch s.Storage.Backend {
	case domain.StorageSQLite, domain.StorageMongo, domain.StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", s.Storage.Backend))
	}
	switch s.VectorIndex.Backend {
	case domain.VectorQdrant, domain.VectorPGVector, domain.VectorMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown vector backend %q", s.VectorIndex.Backend))
	}
	if !s.Embedding.Provider.IsValid() {
		errs = append(errs, fmt.Errorf("unknown embedding provider %q", s.Embedding.Provider))
	}
	if !s.LLM.Provider.IsValid() {
		errs = append(errs, fmt.Errorf("unknown llm provider %q", s.LLM.Provider))
	}
	if s.Chunking.MaxLength <= 0 {
		errs = append(errs, errors.New("chunking.max_length must be positive"))
	}
	return errors.Join(errs...)
}
