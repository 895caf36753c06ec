package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is any OpenAI-compatible API (OpenAI, Groq).
	AIProviderOpenAI AIProvider = "openai"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI-compatible (cloud)"
	default:
		return unknownDescription
	}
}

// StorageBackend selects the document and blob store implementation.
type StorageBackend string

// Available storage backends.
const (
	StorageSQLite StorageBackend = "sqlite"
	StorageMongo  StorageBackend = "mongo"
	StorageMemory StorageBackend = "memory"
)

// VectorBackend selects the vector index implementation.
type VectorBackend string

// Available vector backends.
const (
	VectorQdrant   VectorBackend = "qdrant"
	VectorPGVector VectorBackend = "pgvector"
	VectorMemory   VectorBackend = "memory"
)

// CorpusSettings locates the source documents.
type CorpusSettings struct {
	// Dir is the directory holding the PDF reports.
	Dir string

	// TablesDir holds pre-extracted table sidecars ({name}.tables.json). Optional.
	TablesDir string
}

// StorageSettings configures the report, chunk, table and blob stores.
type StorageSettings struct {
	Backend StorageBackend

	// DataDir holds the sqlite database.
	DataDir string

	// MongoURI and MongoDatabase configure the mongo backend.
	MongoURI      string
	MongoDatabase string
}

// VectorIndexSettings configures the vector index.
type VectorIndexSettings struct {
	Backend VectorBackend

	// URL and APIKey address a Qdrant instance.
	URL    string
	APIKey string

	// DatabaseURL addresses a PostgreSQL database with pgvector.
	DatabaseURL string

	// Collection is the collection (or table) name.
	Collection string
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI-compatible providers).
	APIKey string

	// RequestsPerSecond caps outbound embedding calls.
	RequestsPerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds answer-generation provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key.
	APIKey string

	// Temperature and MaxTokens are sent with every answer request.
	Temperature float64
	MaxTokens   int

	// Retries bounds attempts on transient 5xx responses.
	Retries int

	// Backoff is the base delay, doubled on every attempt.
	Backoff time.Duration

	// RequestsPerSecond caps outbound answer calls.
	RequestsPerSecond float64
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// RerankSettings configures the cross-encoder service.
type RerankSettings struct {
	// URL is the base URL of a text-embeddings-inference style /rerank endpoint.
	// Empty disables reranking.
	URL string

	// Model is informational, reported by ModelName.
	Model string

	APIKey string
}

// IsConfigured returns true if a reranker endpoint is set.
func (r RerankSettings) IsConfigured() bool {
	return r.URL != ""
}

// ChunkingSettings bounds chunk sizes.
type ChunkingSettings struct {
	// MaxLength is the chunk_text limit in characters.
	MaxLength int

	// TableThreshold is the rendered table length above which tables are re-chunked.
	TableThreshold int
}

// SyncSettings tunes ingestion.
type SyncSettings struct {
	// Workers is the number of documents extracted in parallel.
	Workers int

	// BatchSize is the number of vectors per upsert request.
	BatchSize int

	// Retries bounds attempts for embedding and vector index calls.
	Retries int

	// Backoff is the base retry delay.
	Backoff time.Duration
}

// HistorySettings configures the conversation history cache.
type HistorySettings struct {
	// RedisAddr enables the redis store; empty keeps history in memory.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TTL expires idle conversations.
	TTL time.Duration

	// MaxTurns caps stored turns per conversation.
	MaxTurns int
}

// QueueSettings configures the sync request queue.
type QueueSettings struct {
	// AMQPURL enables queued syncs; empty runs uploads' syncs inline.
	AMQPURL string

	// Queue is the durable queue name.
	Queue string
}

// ServerSettings configures the HTTP API.
type ServerSettings struct {
	// Addr is the listen address.
	Addr string

	// ReportBaseURL prefixes report links in answers.
	ReportBaseURL string

	// MaxUploadBytes bounds uploaded PDFs.
	MaxUploadBytes int64
}

// Settings holds all application settings.
type Settings struct {
	Corpus      CorpusSettings
	Storage     StorageSettings
	VectorIndex VectorIndexSettings
	Embedding   EmbeddingSettings
	LLM         LLMSettings
	Rerank      RerankSettings
	Chunking    ChunkingSettings
	Sync        SyncSettings
	History     HistorySettings
	Queue       QueueSettings
	Server      ServerSettings
}

// DefaultSettings returns settings with sensible defaults.
// Secrets and remote endpoints are left empty.
func DefaultSettings() Settings {
	return Settings{
		Corpus: CorpusSettings{Dir: "pdfs"},
		Storage: StorageSettings{
			Backend:       StorageSQLite,
			MongoDatabase: "rag_db",
		},
		VectorIndex: VectorIndexSettings{
			Backend:    VectorQdrant,
			URL:        "http://localhost:6333",
			Collection: "rag_chunks",
		},
		Embedding: EmbeddingSettings{
			Provider:          AIProviderOllama,
			Model:             "all-minilm",
			BaseURL:           "http://localhost:11434",
			RequestsPerSecond: 20,
		},
		LLM: LLMSettings{
			Provider:          AIProviderOpenAI,
			Model:             "llama-3.3-70b-versatile",
			BaseURL:           "https://api.groq.com/openai/v1",
			Temperature:       0.4,
			MaxTokens:         2000,
			Retries:           3,
			Backoff:           2 * time.Second,
			RequestsPerSecond: 1,
		},
		Chunking: ChunkingSettings{MaxLength: 500, TableThreshold: 1000},
		Sync: SyncSettings{
			Workers:   1,
			BatchSize: 100,
			Retries:   3,
			Backoff:   time.Second,
		},
		History: HistorySettings{TTL: 24 * time.Hour, MaxTurns: 10},
		Queue:   QueueSettings{Queue: "chatbot.sync"},
		Server: ServerSettings{
			Addr:           ":5000",
			ReportBaseURL:  "http://localhost:5000/static/rapports/",
			MaxUploadBytes: 64 << 20,
		},
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
