package config

// Config represents the top-level configuration for the mem1 library.
type Config struct {
	// LTM configures the long-term memory storage
	LTM LTMConfig `yaml:"ltm"`

	// Conversation configures the durable conversation log
	Conversation ConversationConfig `yaml:"conversation"`

	// ShortTerm configures the in-process recent-history cache
	ShortTerm ShortTermConfig `yaml:"short_term"`

	// Summary configures the global summary log
	Summary SummaryConfig `yaml:"summary"`

	// Pipeline configures the candidate resolution pipeline
	Pipeline PipelineConfig `yaml:"pipeline"`

	// LLM configures the language model integration
	LLM LLMConfig `yaml:"llm"`

	// Logging configures the logging behavior
	Logging LoggingConfig `yaml:"logging"`
}

// LTMConfig configures the long-term memory storage.
type LTMConfig struct {
	// Backend specifies the LTM backend ("jsonfile", "boltdb", "chromem", "mock")
	Backend string `yaml:"backend"`

	// JSONFile configures file-based storage
	JSONFile JSONFileConfig `yaml:"jsonfile"`

	// BoltDB configures BoltDB key-value storage
	BoltDB BoltDBConfig `yaml:"boltdb"`
}

// JSONFileConfig configures file-based LTM storage.
type JSONFileConfig struct {
	// Path is the JSON file holding the memory records
	Path string `yaml:"path"`
}

// BoltDBConfig configures BoltDB key-value storage.
type BoltDBConfig struct {
	// Path is the BoltDB database file
	Path string `yaml:"path"`
}

// ConversationConfig configures the durable conversation log.
type ConversationConfig struct {
	// Backend specifies the log backend ("jsonfile", "sqlite")
	Backend string `yaml:"backend"`

	// Path is the log file (JSON lines) or SQLite database file
	Path string `yaml:"path"`
}

// ShortTermConfig configures the in-process recent-history cache.
type ShortTermConfig struct {
	// MaxSize is the number of turns kept per session
	MaxSize int `yaml:"max_size"`
}

// SummaryConfig configures the global summary log.
type SummaryConfig struct {
	// Path is the JSON lines file holding summary revisions
	Path string `yaml:"path"`
}

// PipelineConfig configures the candidate resolution pipeline.
type PipelineConfig struct {
	// TopK is the number of similar memories retrieved per candidate
	TopK int `yaml:"top_k"`

	// Workers bounds the number of candidates resolved concurrently
	Workers int `yaml:"workers"`

	// Saturation is the policy when all workers are busy ("block", "callerruns", "reject")
	Saturation string `yaml:"saturation"`
}

// LLMConfig configures the language model integration.
type LLMConfig struct {
	// Provider is the LLM provider ("openai", "mock")
	Provider string `yaml:"provider"`

	// OpenAI configures OpenAI integration
	OpenAI OpenAIConfig `yaml:"openai"`
}

// OpenAIConfig configures OpenAI integration.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the API endpoint (optional, for compatible servers)
	BaseURL string `yaml:"base_url"`

	// Model is the model to use for extraction and decisions
	Model string `yaml:"model"`

	// EmbeddingModel is the model to use for generating embeddings
	EmbeddingModel string `yaml:"embedding_model"`

	// EmbeddingDimensions specifies the embedding dimensions
	EmbeddingDimensions int `yaml:"embedding_dimensions"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	// Level is the logging level ("debug", "info", "warn", "error")
	Level string `yaml:"level"`
}
