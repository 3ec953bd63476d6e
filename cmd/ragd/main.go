// Package main implements the ragd CLI for manual ingestion and retrieval
// operations against a configured vector store.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/chunking"
	"github.com/fyrsmithlabs/ragd/internal/collections"
	"github.com/fyrsmithlabs/ragd/internal/config"
	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/ingest"
	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/resilience"
	"github.com/fyrsmithlabs/ragd/internal/retrieval"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

var (
	configPath string
	tenantID   string
	projectID  string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ragd",
	Short: "CLI for tenant-scoped document ingestion and retrieval",
	Long: `ragd ingests documents into a tenant-isolated vector index and answers
queries by retrieving and formatting relevant passages.

Documents are written hidden; run "ragd publish" after your own system of
record commits to make them searchable.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&tenantID, "tenant", "", "tenant ID (required)")
	rootCmd.PersistentFlags().StringVar(&projectID, "project", "", "project ID (required)")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(healthCmd)
}

// deps holds the wired components shared by the commands.
type deps struct {
	cfg      *config.Config
	logger   *zap.Logger
	provider embeddings.Provider
	store    vectorstore.Store
}

func (d *deps) close() {
	_ = d.provider.Close()
	_ = d.store.Close()
	_ = d.logger.Sync()
}

func buildDeps(ctx context.Context) (*deps, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	logger.Debug("configuration loaded", cfg.Summary()...)

	provider, err := embeddings.New(cfg.Embeddings, logger)
	if err != nil {
		return nil, err
	}
	store, err := vectorstore.New(ctx, cfg.VectorStore)
	if err != nil {
		_ = provider.Close()
		return nil, err
	}

	retryer := resilience.New(cfg.Retry, logger)
	return &deps{
		cfg:      cfg,
		logger:   logger,
		provider: resilience.WrapProvider(provider, retryer),
		store:    resilience.WrapStore(store, retryer),
	}, nil
}

func requireScope() error {
	if tenantID == "" {
		return fmt.Errorf("--tenant is required")
	}
	if projectID == "" {
		return fmt.Errorf("--project is required")
	}
	return nil
}

var (
	ingestDocumentID string
	ingestMimeType   string
	ingestStrategy   string
	ingestMaxTokens  int
	ingestOverlap    int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Ingest a document (written hidden until published)",
	Long: `Ingest a document: parse, chunk, embed, and upsert its vectors hidden.

Examples:
  # Ingest with the configured chunking defaults
  ragd ingest --tenant acme --project docs notes.md

  # Override the chunking strategy and budget
  ragd ingest --tenant acme --project docs --strategy sentence --max-tokens 256 report.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDocumentID, "document", "", "document ID (defaults to the file name)")
	ingestCmd.Flags().StringVar(&ingestMimeType, "mime", "", "mime type (defaults from the file extension)")
	ingestCmd.Flags().StringVar(&ingestStrategy, "strategy", "", "chunking strategy: fixed, recursive, sentence, semantic")
	ingestCmd.Flags().IntVar(&ingestMaxTokens, "max-tokens", 0, "chunk token budget (defaults from config)")
	ingestCmd.Flags().IntVar(&ingestOverlap, "overlap", -1, "chunk overlap tokens (defaults from config)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	if err := requireScope(); err != nil {
		return err
	}
	ctx := cmd.Context()

	d, err := buildDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	path := args[0]
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	documentID := ingestDocumentID
	if documentID == "" {
		documentID = filepath.Base(path)
	}
	mimeType := ingestMimeType
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(path))
		if mimeType == "" {
			mimeType = "text/plain"
		}
	}

	strategy := ingestStrategy
	if strategy == "" {
		strategy = d.cfg.Chunking.Strategy
	}
	chunkCfg := chunking.Config{
		MaxTokens: d.cfg.Chunking.MaxTokens,
		Overlap:   d.cfg.Chunking.Overlap,
	}
	if ingestMaxTokens > 0 {
		chunkCfg.MaxTokens = ingestMaxTokens
	}
	if ingestOverlap >= 0 {
		chunkCfg.Overlap = ingestOverlap
	}

	pipeline, err := ingest.NewPipeline(ingest.NewPlainTextParser(), d.provider, d.store, d.logger)
	if err != nil {
		return err
	}

	result, err := pipeline.Ingest(ctx, ingest.Request{
		TenantID:   tenantID,
		ProjectID:  projectID,
		DocumentID: documentID,
		Content:    content,
		MimeType:   mimeType,
		Strategy:   strategy,
		Chunking:   chunkCfg,
	})
	if err != nil {
		return err
	}

	fmt.Printf("ingested %s: %d chunks, %d tokens, %d dimensions (hidden; run \"ragd publish --document %s\" to make searchable)\n",
		result.DocumentID, result.ChunkCount, result.TokensUsed, result.EmbeddingDimensions, result.DocumentID)
	return nil
}

var publishDocumentID string

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Make an ingested document visible to search",
	Long: `Flip a document's vectors from hidden to visible.

Run this after the document's authoritative record has committed in your
system of record.`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishDocumentID, "document", "", "document ID (required)")
	_ = publishCmd.MarkFlagRequired("document")
}

func runPublish(cmd *cobra.Command, _ []string) error {
	if err := requireScope(); err != nil {
		return err
	}
	ctx := cmd.Context()

	d, err := buildDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	collection, err := collections.GenerateName(tenantID, projectID)
	if err != nil {
		return err
	}
	if err := d.store.SetVisibility(ctx, collection, tenantID, publishDocumentID, vectorstore.VisibilityVisible); err != nil {
		return err
	}

	fmt.Printf("published %s\n", publishDocumentID)
	return nil
}

var (
	queryTopK            int
	queryThreshold       float32
	queryModel           string
	queryDocumentIDs     []string
	queryIncludeMetadata bool
	queryJSON            bool
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Retrieve passages relevant to a query",
	Long: `Embed a query, search the tenant's collection, and print the assembled
context.

Examples:
  ragd query --tenant acme --project docs "how do I rotate credentials"
  ragd query --tenant acme --project docs --model claude --top-k 5 "backup policy"`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVar(&queryTopK, "top-k", 0, "maximum results (default 10)")
	queryCmd.Flags().Float32Var(&queryThreshold, "threshold", 0, "minimum similarity score")
	queryCmd.Flags().StringVar(&queryModel, "model", "", "context format: claude, gpt, gemini, generic")
	queryCmd.Flags().StringSliceVar(&queryDocumentIDs, "document", nil, "restrict to these document IDs")
	queryCmd.Flags().BoolVar(&queryIncludeMetadata, "metadata", false, "include chunk metadata in output")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print the full response as JSON")
}

func runQuery(cmd *cobra.Command, args []string) error {
	if err := requireScope(); err != nil {
		return err
	}
	ctx := cmd.Context()

	d, err := buildDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	pipeline, err := retrieval.NewPipeline(d.provider, d.store, d.logger)
	if err != nil {
		return err
	}

	var filter map[string]interface{}
	if len(queryDocumentIDs) > 0 {
		filter = map[string]interface{}{"documentIds": queryDocumentIDs}
	}

	response, err := pipeline.Retrieve(ctx, retrieval.Query{
		TenantID:        tenantID,
		ProjectID:       projectID,
		Text:            args[0],
		TopK:            queryTopK,
		ScoreThreshold:  queryThreshold,
		Filter:          filter,
		TargetModel:     queryModel,
		IncludeMetadata: queryIncludeMetadata,
	})
	if err != nil {
		return err
	}

	if queryJSON {
		encoded, err := json.MarshalIndent(response, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))
		return nil
	}

	if len(response.Chunks) == 0 {
		fmt.Println("no results")
		return nil
	}
	fmt.Println(response.Context)
	fmt.Printf("\n%d chunks in %dms (%d tokens)\n",
		response.Metadata.TotalChunksSearched, response.Metadata.RetrievalTimeMs, response.Metadata.TokensUsed)
	return nil
}

var deleteDocumentID string

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a document's vectors",
	RunE:  runDelete,
}

func init() {
	deleteCmd.Flags().StringVar(&deleteDocumentID, "document", "", "document ID (required)")
	_ = deleteCmd.MarkFlagRequired("document")
}

func runDelete(cmd *cobra.Command, _ []string) error {
	if err := requireScope(); err != nil {
		return err
	}
	ctx := cmd.Context()

	d, err := buildDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	collection, err := collections.GenerateName(tenantID, projectID)
	if err != nil {
		return err
	}
	err = d.store.DeleteByFilter(ctx, collection, tenantID, vectorstore.DeleteSelector{
		ProjectID:  projectID,
		DocumentID: deleteDocumentID,
	})
	if err != nil {
		return err
	}

	fmt.Printf("deleted %s\n", deleteDocumentID)
	return nil
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check embedding provider and vector store health",
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	d, err := buildDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	if err := d.provider.HealthCheck(ctx); err != nil {
		return fmt.Errorf("embedding provider (%s): %w", d.provider.Model(), err)
	}
	fmt.Printf("embedding provider ok (%s, %d dimensions)\n", d.provider.Model(), d.provider.Dimensions())

	if err := d.store.HealthCheck(ctx); err != nil {
		return fmt.Errorf("vector store (%s): %w", d.cfg.VectorStore.Backend, err)
	}
	fmt.Printf("vector store ok (%s)\n", d.cfg.VectorStore.Backend)
	return nil
}
