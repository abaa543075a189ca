package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/memgrid/memgrid-go/pkg/categorizer"
	"github.com/memgrid/memgrid-go/pkg/embedder"
	embedderopenai "github.com/memgrid/memgrid-go/pkg/embedder/openai"
	"github.com/memgrid/memgrid-go/pkg/extractor"
	"github.com/memgrid/memgrid-go/pkg/llm"
	llmopenai "github.com/memgrid/memgrid-go/pkg/llm/openai"
	"github.com/memgrid/memgrid-go/pkg/router"
	"github.com/memgrid/memgrid-go/pkg/search"
	"github.com/memgrid/memgrid-go/pkg/storage"
	"github.com/memgrid/memgrid-go/pkg/storage/mysql"
	"github.com/memgrid/memgrid-go/pkg/storage/postgres"
	"github.com/memgrid/memgrid-go/pkg/storage/sqlite"
)

// Client is the MemGrid client. It orchestrates the ingestion pipeline
// (extract, categorize, embed, persist, link) and routes search queries to
// the retrieval strategies.
//
// Example:
//
//	config, _ := core.LoadConfigFromEnv()
//	client, err := core.NewClient(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	memories, _ := client.Ingest(ctx, "owner_001",
//	    "I'm Alice, a nurse in Boston. I love hiking.", core.TierPersonal)
//	results, _ := client.Search(ctx, "owner_001", "What's my job?")
type Client struct {
	config      *Config
	store       storage.Store
	llm         llm.Provider
	embedder    embedder.Provider
	extractor   *extractor.Extractor
	categorizer *categorizer.Categorizer
	router      *router.Router
	node        *snowflake.Node
	logger      *zap.Logger
	taskTTL     time.Duration
	now         func() time.Time
}

// ClientOption configures optional client dependencies.
type ClientOption func(*clientOptions)

type clientOptions struct {
	store    storage.Store
	llm      llm.Provider
	embedder embedder.Provider
	logger   *zap.Logger
}

// WithStore injects a pre-built store, overriding Config.Store.
func WithStore(store storage.Store) ClientOption {
	return func(o *clientOptions) { o.store = store }
}

// WithLLMProvider injects a pre-built LLM provider, overriding Config.LLM.
func WithLLMProvider(provider llm.Provider) ClientOption {
	return func(o *clientOptions) { o.llm = provider }
}

// WithEmbedderProvider injects a pre-built embedding provider, overriding
// Config.Embedder.
func WithEmbedderProvider(provider embedder.Provider) ClientOption {
	return func(o *clientOptions) { o.embedder = provider }
}

// WithLogger sets the structured logger. The client is silent without one.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = logger }
}

// NewClient creates a new MemGrid client from the given configuration.
//
// Providers and the store are built from the config unless injected through
// options. Returns an error wrapping ErrInvalidConfig when required
// configuration is missing.
func NewClient(config *Config, opts ...ClientOption) (*Client, error) {
	if config == nil {
		return nil, NewMemoryError("NewClient", ErrInvalidConfig)
	}

	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	llmProvider := o.llm
	if llmProvider == nil {
		if config.LLM.Provider == "" {
			return nil, NewMemoryError("NewClient", ErrInvalidConfig)
		}
		var err error
		llmProvider, err = newLLMProvider(&config.LLM)
		if err != nil {
			return nil, NewMemoryError("NewClient", err)
		}
	}

	embedderProvider := o.embedder
	if embedderProvider == nil {
		if config.Embedder.Provider == "" {
			return nil, NewMemoryError("NewClient", ErrInvalidConfig)
		}
		var err error
		embedderProvider, err = newEmbedderProvider(&config.Embedder)
		if err != nil {
			return nil, NewMemoryError("NewClient", err)
		}
	}

	store := o.store
	if store == nil {
		if config.Store.Provider == "" {
			return nil, NewMemoryError("NewClient", ErrInvalidConfig)
		}
		var err error
		store, err = newStore(&config.Store)
		if err != nil {
			return nil, NewMemoryError("NewClient", err)
		}
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, NewMemoryError("NewClient", err)
	}

	searchCfg := config.Search
	if searchCfg == nil {
		searchCfg = &SearchConfig{}
	}

	semantic := search.NewSemanticStrategy(store, embedderProvider, searchCfg.SemanticThreshold)
	keyword := search.NewKeywordStrategy(store)
	categorical := search.NewCategoricalStrategy(store)
	temporal := search.NewTemporalStrategy(store)
	graph := search.NewGraphStrategy(store, searchCfg.GraphDepth)
	hybrid := search.NewHybridStrategy(
		[]search.Strategy{semantic, keyword, categorical, temporal, graph},
		nil, logger)
	strategies := []search.Strategy{semantic, keyword, categorical, temporal, graph, hybrid}

	client := &Client{
		config:   config,
		store:    store,
		llm:      llmProvider,
		embedder: embedderProvider,
		extractor: extractor.New(llmProvider, &extractor.Config{
			Logger: logger.Named("extractor"),
		}),
		categorizer: categorizer.New(llmProvider, &categorizer.Config{
			Logger: logger.Named("categorizer"),
		}),
		router: router.New(llmProvider, strategies, &router.Config{
			MinIntentConfidence: searchCfg.MinIntentConfidence,
			Logger:              logger.Named("router"),
		}),
		node:    node,
		logger:  logger,
		taskTTL: config.TaskTTLOrDefault(),
		now:     time.Now,
	}
	return client, nil
}

// newLLMProvider builds an LLM provider from configuration. OpenAI-compatible
// services are reached through the openai provider with a custom BaseURL.
func newLLMProvider(cfg *LLMConfig) (llm.Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai", "qwen", "deepseek", "ollama":
		return llmopenai.NewClient(&llmopenai.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	case "mock":
		return &llm.MockProvider{}, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// newEmbedderProvider builds an embedding provider from configuration.
func newEmbedderProvider(cfg *EmbedderConfig) (embedder.Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai", "qwen":
		return embedderopenai.NewClient(&embedderopenai.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
	case "mock":
		return &embedder.MockProvider{Dims: cfg.Dimensions}, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

// newStore builds a storage backend from configuration.
func newStore(cfg *StoreConfig) (storage.Store, error) {
	switch strings.ToLower(cfg.Provider) {
	case "sqlite":
		return sqlite.NewClient(&sqlite.Config{
			DBPath:        getString(cfg.Config, "db_path", "./memgrid.db"),
			TableName:     getString(cfg.Config, "table_name", ""),
			EmbeddingDims: getInt(cfg.Config, "embedding_model_dims", 1536),
		})
	case "postgres":
		return postgres.NewClient(&postgres.Config{
			Host:          getString(cfg.Config, "host", "localhost"),
			Port:          getInt(cfg.Config, "port", 5432),
			User:          getString(cfg.Config, "user", "postgres"),
			Password:      getString(cfg.Config, "password", ""),
			DBName:        getString(cfg.Config, "db_name", "memgrid"),
			TableName:     getString(cfg.Config, "table_name", ""),
			EmbeddingDims: getInt(cfg.Config, "embedding_model_dims", 1536),
			SSLMode:       getString(cfg.Config, "ssl_mode", "disable"),
		})
	case "mysql":
		return mysql.NewClient(&mysql.Config{
			Host:          getString(cfg.Config, "host", "127.0.0.1"),
			Port:          getInt(cfg.Config, "port", 3306),
			User:          getString(cfg.Config, "user", "root"),
			Password:      getString(cfg.Config, "password", ""),
			DBName:        getString(cfg.Config, "db_name", "memgrid"),
			TableName:     getString(cfg.Config, "table_name", ""),
			EmbeddingDims: getInt(cfg.Config, "embedding_model_dims", 1536),
		})
	default:
		return nil, fmt.Errorf("unsupported store provider: %s", cfg.Provider)
	}
}

func getString(config map[string]interface{}, key, defaultValue string) string {
	if v, ok := config[key].(string); ok && v != "" {
		return v
	}
	return defaultValue
}

func getInt(config map[string]interface{}, key string, defaultValue int) int {
	switch v := config[key].(type) {
	case int:
		return v
	case float64:
		// JSON numbers decode as float64.
		return int(v)
	}
	return defaultValue
}

// Ingest runs the full ingestion pipeline on raw text and returns the
// persisted memories.
//
// Pipeline: extract facts, categorize, embed, validate, persist, link.
// Extraction, categorization, and embedding failures degrade (a raw-text
// fact, the "uncategorized" path, a nil vector) rather than fail the call;
// only validation of the inputs and store unavailability surface as errors.
// Facts persisted without a vector remain reachable through the
// non-semantic strategies until BackfillEmbeddings runs.
func (c *Client) Ingest(ctx context.Context, ownerID, text string, tier Tier, opts ...IngestOption) ([]*Memory, error) {
	if ownerID == "" {
		return nil, NewMemoryError("Ingest", fmt.Errorf("%w: owner id required", ErrValidation))
	}
	if strings.TrimSpace(text) == "" {
		return nil, NewMemoryError("Ingest", fmt.Errorf("%w: empty text", ErrValidation))
	}
	if !tier.Valid() {
		return nil, NewMemoryError("Ingest", fmt.Errorf("%w: invalid tier %q", ErrValidation, tier))
	}

	options := DefaultIngestOptions()
	for _, opt := range opts {
		opt(options)
	}

	var facts []extractor.Fact
	if options.ExtractFacts {
		facts = c.extractor.Extract(ctx, text, extractor.Options{
			MaxFacts:      options.MaxFacts,
			MinConfidence: options.MinConfidence,
		})
	} else {
		facts = []extractor.Fact{{Content: text, Type: extractor.FactOther, Confidence: 1.0}}
	}
	if len(facts) == 0 {
		return nil, nil
	}

	texts := make([]string, len(facts))
	for i, f := range facts {
		texts[i] = f.Content
	}

	categories := make([]categorizer.CategoryPath, len(facts))
	for i := range categories {
		categories[i] = categorizer.Fallback()
	}
	if options.AutoCategorize {
		categories = c.categorizer.CategorizeBatch(ctx, texts)
	}

	embeddings := make([][]float64, len(facts))
	if options.GenerateEmbeddings {
		vectors, err := c.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			c.logger.Warn("embedding degraded, some memories stored without vectors",
				zap.Int("facts", len(facts)),
				zap.Error(err))
		}
		if len(vectors) == len(facts) {
			embeddings = vectors
		}
	}

	now := c.now()
	memories := make([]*Memory, 0, len(facts))
	for i, fact := range facts {
		memory := &Memory{
			ID:           c.node.Generate().Int64(),
			OwnerID:      ownerID,
			Tier:         tier,
			Content:      fact.Content,
			Embedding:    embeddings[i],
			CategoryPath: categories[i].Levels,
			FactType:     FactType(fact.Type),
			Confidence:   fact.Confidence,
			CreatedAt:    now,
			AccessedAt:   now,
		}
		if err := validateMemory(memory, c.embedder.Dimensions()); err != nil {
			c.logger.Warn("skipping invalid fact",
				zap.String("content", fact.Content),
				zap.Error(err))
			continue
		}
		if err := c.store.Insert(ctx, toStorageMemory(memory)); err != nil {
			return nil, NewMemoryError("Ingest", fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
		}
		memories = append(memories, memory)
	}

	if options.LinkFacts && len(memories) > 1 {
		if err := c.linkBatch(ctx, memories); err != nil {
			return nil, NewMemoryError("Ingest", fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
		}
	}

	return memories, nil
}

// linkBatch records symmetric related-id links among the memories of one
// ingest batch. Linking never crosses batches.
func (c *Client) linkBatch(ctx context.Context, memories []*Memory) error {
	ids := make([]int64, len(memories))
	for i, m := range memories {
		ids[i] = m.ID
	}
	for _, m := range memories {
		others := make([]int64, 0, len(ids)-1)
		for _, id := range ids {
			if id != m.ID {
				others = append(others, id)
			}
		}
		if err := c.store.AppendRelated(ctx, m.ID, others); err != nil {
			return err
		}
		m.RelatedIDs = others
	}
	return nil
}

// validateMemory checks the record invariants before persistence. dims is
// the deployment's fixed embedding dimension; zero disables the length
// check.
func validateMemory(m *Memory, dims int) error {
	if strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("%w: empty content", ErrValidation)
	}
	if !m.Tier.Valid() {
		return fmt.Errorf("%w: invalid tier %q", ErrValidation, m.Tier)
	}
	if !m.FactType.Valid() {
		return fmt.Errorf("%w: invalid fact type %q", ErrValidation, m.FactType)
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return fmt.Errorf("%w: confidence %f out of range", ErrValidation, m.Confidence)
	}
	if m.Embedding != nil && dims > 0 && len(m.Embedding) != dims {
		return fmt.Errorf("%w: embedding dimension %d, deployment uses %d",
			ErrValidation, len(m.Embedding), dims)
	}
	if len(m.CategoryPath) == 0 || len(m.CategoryPath) > MaxCategoryDepth {
		return fmt.Errorf("%w: category path must have 1-%d levels", ErrValidation, MaxCategoryDepth)
	}
	for _, level := range m.CategoryPath {
		if level == "" {
			return fmt.Errorf("%w: empty category level", ErrValidation)
		}
	}
	return nil
}

// Search retrieves memories relevant to the query.
//
// The router classifies the query intent and dispatches to the matching
// strategy; WithStrategy forces one directly. Returned memories have their
// accessed_at and access_count updated.
func (c *Client) Search(ctx context.Context, ownerID, query string, opts ...SearchOption) ([]search.Result, error) {
	if ownerID == "" {
		return nil, NewMemoryError("Search", fmt.Errorf("%w: owner id required", ErrValidation))
	}
	if strings.TrimSpace(query) == "" {
		return nil, NewMemoryError("Search", fmt.Errorf("%w: empty query", ErrValidation))
	}

	options := DefaultSearchOptions()
	for _, opt := range opts {
		opt(options)
	}

	var tiers []string
	for _, t := range options.TierFilter {
		if !t.Valid() {
			return nil, NewMemoryError("Search", fmt.Errorf("%w: invalid tier %q", ErrValidation, t))
		}
		tiers = append(tiers, string(t))
	}

	results, err := c.router.Search(ctx, ownerID, query, options.TopK, tiers, options.StrategyOverride)
	if err != nil {
		return nil, NewMemoryError("Search", err)
	}

	if len(results) > 0 {
		ids := make([]int64, len(results))
		for i, r := range results {
			ids[i] = r.Memory.ID
		}
		if err := c.store.Touch(ctx, ids); err != nil {
			c.logger.Warn("failed to record memory access", zap.Error(err))
		}
	}

	return results, nil
}

// Get retrieves a memory by ID. Returns an error wrapping ErrNotFound when
// absent.
func (c *Client) Get(ctx context.Context, id int64) (*Memory, error) {
	memory, err := c.store.Get(ctx, id)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, NewMemoryError("Get", ErrNotFound)
		}
		return nil, NewMemoryError("Get", err)
	}
	return fromStorageMemory(memory), nil
}

// Delete removes a memory by ID. Related-id references held by other
// memories are weak and simply dangle.
func (c *Client) Delete(ctx context.Context, id int64) error {
	if err := c.store.Delete(ctx, id); err != nil {
		if err == storage.ErrNotFound {
			return NewMemoryError("Delete", ErrNotFound)
		}
		return NewMemoryError("Delete", err)
	}
	return nil
}

// Stats reports stored-memory counts for an owner. An empty ownerID
// aggregates across all owners.
func (c *Client) Stats(ctx context.Context, ownerID string) (*StatsReport, error) {
	stats, err := c.store.Stats(ctx, ownerID)
	if err != nil {
		return nil, NewMemoryError("Stats", err)
	}

	report := &StatsReport{
		OwnerID:       ownerID,
		Total:         stats.Total,
		ByTier:        make(map[Tier]int64, len(stats.ByTier)),
		ByCategory:    stats.ByCategory,
		WithEmbedding: stats.WithEmbedding,
	}
	for tier, count := range stats.ByTier {
		report.ByTier[Tier(tier)] = count
	}
	if stats.Total > 0 {
		report.EmbeddingCoverage = float64(stats.WithEmbedding) / float64(stats.Total)
	}
	return report, nil
}

// RunRetention runs one retention sweep: task-tier memories older than the
// configured TTL are deleted. Personal and project memories are never
// pruned. Returns the number of memories removed; a sweep with nothing
// newly expired removes zero.
func (c *Client) RunRetention(ctx context.Context) (int64, error) {
	cutoff := c.now().Add(-c.taskTTL)
	removed, err := c.store.DeleteExpired(ctx, string(TierTask), cutoff)
	if err != nil {
		return 0, NewMemoryError("RunRetention", err)
	}
	if removed > 0 {
		c.logger.Info("retention sweep removed expired task memories",
			zap.Int64("removed", removed))
	}
	return removed, nil
}

// StartRetention runs retention sweeps on the given interval in the
// background. The returned function stops the loop and waits for an
// in-flight sweep to finish. A non-positive interval selects the default.
func (c *Client) StartRetention(interval time.Duration) func() {
	if interval <= 0 {
		interval = DefaultSweepInterval
		if c.config.Retention != nil && c.config.Retention.SweepInterval > 0 {
			interval = c.config.Retention.SweepInterval
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := c.RunRetention(ctx); err != nil {
					c.logger.Warn("retention sweep failed", zap.Error(err))
				}
			}
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}

// BackfillEmbeddings generates vectors for an owner's memories that were
// persisted without one and stores them. Returns how many memories were
// backfilled.
func (c *Client) BackfillEmbeddings(ctx context.Context, ownerID string) (int, error) {
	if ownerID == "" {
		return 0, NewMemoryError("BackfillEmbeddings", fmt.Errorf("%w: owner id required", ErrValidation))
	}

	// Zero from means unbounded, so this lists every memory of the owner.
	memories, err := c.store.SearchTimeRange(ctx, time.Time{}, c.now(), &storage.RangeOptions{
		OwnerID: ownerID,
	})
	if err != nil {
		return 0, NewMemoryError("BackfillEmbeddings", err)
	}

	var missing []*storage.Memory
	for _, m := range memories {
		if m.Embedding == nil {
			missing = append(missing, m)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}

	texts := make([]string, len(missing))
	for i, m := range missing {
		texts[i] = m.Content
	}
	vectors, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		c.logger.Warn("backfill embedding partially failed", zap.Error(err))
	}

	backfilled := 0
	for i, m := range missing {
		if i >= len(vectors) || vectors[i] == nil {
			continue
		}
		if err := c.store.UpdateEmbedding(ctx, m.ID, vectors[i]); err != nil {
			return backfilled, NewMemoryError("BackfillEmbeddings", err)
		}
		backfilled++
	}
	return backfilled, nil
}

// Close closes the client and its providers.
func (c *Client) Close() error {
	var firstErr error
	if err := c.store.Close(); err != nil {
		firstErr = err
	}
	if err := c.llm.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.embedder.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		return NewMemoryError("Close", firstErr)
	}
	return nil
}
