// Package mem1 is the main facade of the library. A Client ties together the
// conversation log, the short-term cache, the long-term store, the global
// summary log and the resolution pipeline behind a small session-scoped API.
package mem1

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/931405/mem1/pkg/config"
	"github.com/931405/mem1/pkg/conversation"
	convJSONFile "github.com/931405/mem1/pkg/conversation/adapters/jsonfile"
	convSQLite "github.com/931405/mem1/pkg/conversation/adapters/sqlite"
	"github.com/931405/mem1/pkg/decision"
	decisionOpenAI "github.com/931405/mem1/pkg/decision/adapters/openai"
	"github.com/931405/mem1/pkg/embedding"
	embeddingMock "github.com/931405/mem1/pkg/embedding/adapters/mock"
	embeddingOpenAI "github.com/931405/mem1/pkg/embedding/adapters/openai"
	"github.com/931405/mem1/pkg/extraction"
	extractionMock "github.com/931405/mem1/pkg/extraction/adapters/mock"
	extractionOpenAI "github.com/931405/mem1/pkg/extraction/adapters/openai"
	"github.com/931405/mem1/pkg/log"
	"github.com/931405/mem1/pkg/mem/ltm"
	"github.com/931405/mem1/pkg/mem/ltm/adapters/boltdb"
	"github.com/931405/mem1/pkg/mem/ltm/adapters/chromem"
	ltmJSONFile "github.com/931405/mem1/pkg/mem/ltm/adapters/jsonfile"
	ltmMock "github.com/931405/mem1/pkg/mem/ltm/adapters/mock"
	"github.com/931405/mem1/pkg/mem/stm"
	"github.com/931405/mem1/pkg/pipeline"
	"github.com/931405/mem1/pkg/summary"
)

// Components holds the dependencies of a Client. Every field is required
// except Decider, which falls back to the heuristic when nil.
type Components struct {
	Store        ltm.Store
	Conversation conversation.Log
	ShortTerm    *stm.Cache
	Summary      *summary.Log
	Embedder     embedding.Embedder
	Extractor    extraction.Extractor
	Decider      decision.Decider
	Pipeline     pipeline.Options
}

// Stats accumulates resolution outcomes over the lifetime of a Client.
type Stats struct {
	TurnsRecorded int
	Added         int
	Updated       int
	Deleted       int
	Skipped       int
	Failed        int
}

// Client is the implementation of the facade.
type Client struct {
	store     ltm.Store
	log       conversation.Log
	shortTerm *stm.Cache
	summaries *summary.Log
	embedder  embedding.Embedder
	extractor extraction.Extractor
	resolver  *pipeline.Resolver

	mu    sync.Mutex
	stats Stats

	// closers are resources owned by NewFromConfig; nil for NewClient.
	closers []func() error

	now func() time.Time
}

// NewClient creates a Client from explicitly wired components.
func NewClient(c Components) *Client {
	client := &Client{
		store:     c.Store,
		log:       c.Conversation,
		shortTerm: c.ShortTerm,
		summaries: c.Summary,
		embedder:  c.Embedder,
		extractor: c.Extractor,
		resolver:  pipeline.NewResolver(c.Store, c.Embedder, c.Decider, c.Pipeline),
		now:       time.Now,
	}

	log.Debug("Memory client initialized",
		"decider_present", c.Decider != nil,
		"workers", c.Pipeline.Workers,
	)

	return client
}

// NewFromConfig creates a Client with every component initialized from the
// configuration file. Close releases the resources it opened.
func NewFromConfig(configPath string) (*Client, error) {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return New(cfg)
}

// New creates a Client from an already loaded configuration.
func New(cfg *config.Config) (*Client, error) {
	log.Setup(log.Config{Level: log.Level(cfg.Logging.Level)})

	store, storeClose, err := initStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory store: %w", err)
	}

	convLog, convClose, err := initConversationLog(cfg)
	if err != nil {
		if storeClose != nil {
			storeClose()
		}
		return nil, fmt.Errorf("failed to initialize conversation log: %w", err)
	}

	embedder := initEmbedder(cfg)
	extractor := initExtractor(cfg)
	decider := initDecider(cfg)

	client := NewClient(Components{
		Store:        store,
		Conversation: convLog,
		ShortTerm:    stm.NewCache(cfg.ShortTerm.MaxSize, convLog),
		Summary:      summary.NewLog(cfg.Summary.Path),
		Embedder:     embedder,
		Extractor:    extractor,
		Decider:      decider,
		Pipeline: pipeline.Options{
			TopK:       cfg.Pipeline.TopK,
			Workers:    cfg.Pipeline.Workers,
			Saturation: pipeline.SaturationPolicy(cfg.Pipeline.Saturation),
		},
	})

	if storeClose != nil {
		client.closers = append(client.closers, storeClose)
	}
	if convClose != nil {
		client.closers = append(client.closers, convClose)
	}

	log.Info("Memory client initialized from config",
		"ltm_backend", cfg.LTM.Backend,
		"conversation_backend", cfg.Conversation.Backend,
		"llm_provider", cfg.LLM.Provider,
	)

	return client, nil
}

// Close releases resources opened by NewFromConfig. It is a no-op for
// clients built with NewClient.
func (c *Client) Close() error {
	var firstErr error
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.closers = nil
	return firstErr
}

// initStore initializes the long-term memory store based on configuration.
func initStore(cfg *config.Config) (ltm.Store, func() error, error) {
	backend := strings.ToLower(cfg.LTM.Backend)
	log.Info("Initializing memory store", "backend", backend)

	switch backend {
	case "jsonfile", "":
		path := cfg.LTM.JSONFile.Path
		if path == "" {
			path = "data/memories.json"
		}
		store, err := ltmJSONFile.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil

	case "boltdb":
		path := cfg.LTM.BoltDB.Path
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create directory for BoltDB: %w", err)
		}
		db, err := bolt.Open(path, 0o600, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open BoltDB database: %w", err)
		}
		store, err := boltdb.NewBoltStore(db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil

	case "chromem":
		return chromem.NewStore(), nil, nil

	case "mock":
		return ltmMock.NewStore(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported LTM backend: %s", backend)
	}
}

// initConversationLog initializes the durable conversation log.
func initConversationLog(cfg *config.Config) (conversation.Log, func() error, error) {
	backend := strings.ToLower(cfg.Conversation.Backend)

	switch backend {
	case "jsonfile", "":
		path := cfg.Conversation.Path
		if path == "" {
			path = "data/conversation.log"
		}
		return convJSONFile.NewLog(path), nil, nil

	case "sqlite":
		path := cfg.Conversation.Path
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create directory for SQLite DB: %w", err)
		}
		convLog, err := convSQLite.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return convLog, convLog.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported conversation backend: %s", backend)
	}
}

// initEmbedder initializes the embedder, falling back to the mock when no
// API key is available.
func initEmbedder(cfg *config.Config) embedding.Embedder {
	if strings.ToLower(cfg.LLM.Provider) == "openai" {
		adapter, err := embeddingOpenAI.NewOpenAIAdapter(embeddingOpenAI.Config{
			APIKey:     cfg.LLM.OpenAI.APIKey,
			Model:      cfg.LLM.OpenAI.EmbeddingModel,
			Dimensions: cfg.LLM.OpenAI.EmbeddingDimensions,
			BaseURL:    cfg.LLM.OpenAI.BaseURL,
		})
		if err == nil {
			log.Info("Using OpenAI embedder", "model", cfg.LLM.OpenAI.EmbeddingModel)
			return adapter
		}
		log.Warn("Failed to initialize OpenAI embedder, falling back to mock", "error", err)
	}
	return embeddingMock.NewMockEmbedder()
}

// initExtractor initializes the fact extractor.
func initExtractor(cfg *config.Config) extraction.Extractor {
	if strings.ToLower(cfg.LLM.Provider) == "openai" {
		extractor, err := extractionOpenAI.NewOpenAIExtractor(extractionOpenAI.Config{
			APIKey:  cfg.LLM.OpenAI.APIKey,
			Model:   cfg.LLM.OpenAI.Model,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
		})
		if err == nil {
			log.Info("Using OpenAI extractor", "model", cfg.LLM.OpenAI.Model)
			return extractor
		}
		log.Warn("Failed to initialize OpenAI extractor, falling back to mock", "error", err)
	}
	return extractionMock.NewMockExtractor()
}

// initDecider initializes the decider. A nil decider means every decision
// comes from the deterministic heuristic.
func initDecider(cfg *config.Config) decision.Decider {
	if strings.ToLower(cfg.LLM.Provider) == "openai" {
		decider, err := decisionOpenAI.NewOpenAIDecider(decisionOpenAI.Config{
			APIKey:  cfg.LLM.OpenAI.APIKey,
			Model:   cfg.LLM.OpenAI.Model,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
		})
		if err == nil {
			log.Info("Using OpenAI decider", "model", cfg.LLM.OpenAI.Model)
			return decider
		}
		log.Warn("Failed to initialize OpenAI decider, falling back to heuristic", "error", err)
	}
	return nil
}
