// Package knowledgebase is an in-memory retriever over a markdown reference
// document. Every `### ` section becomes one entry in a chromem-go collection.
// By default entries are embedded with a TF-IDF vectorizer fitted on the
// document itself, so no embedding service is needed.
package knowledgebase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/koscakluka/ema-dialogue/core/retrieval"
	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	collectionName = "knowledge"
	labelKey       = "label"

	DefaultTopK      = 5
	DefaultMinScore  = 0.01
	defaultCacheSize = 1024
)

var ErrEmptyDocument = errors.New("document has no sections")

type KnowledgeBase struct {
	collection *chromem.Collection
	sections   []Section
	summary    string

	embed    chromem.EmbeddingFunc
	topK     int
	minScore float32
}

// Load reads a markdown document from path and indexes it.
func Load(ctx context.Context, path string, opts ...Option) (*KnowledgeBase, error) {
	document, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge document: %w", err)
	}
	return New(ctx, string(document), opts...)
}

// New splits markdown into sections and indexes them.
func New(ctx context.Context, markdown string, opts ...Option) (*KnowledgeBase, error) {
	ctx, span := tracer.Start(ctx, "build knowledge base")
	defer span.End()

	options := Options{
		TopK:      DefaultTopK,
		MinScore:  DefaultMinScore,
		CacheSize: defaultCacheSize,
	}
	for _, opt := range opts {
		opt(&options)
	}

	sections := SplitSections(markdown)
	if len(sections) == 0 {
		span.RecordError(ErrEmptyDocument)
		span.SetStatus(codes.Error, ErrEmptyDocument.Error())
		return nil, ErrEmptyDocument
	}

	embed := options.EmbeddingFunc
	if embed == nil {
		documents := make([]string, len(sections))
		for i, section := range sections {
			documents[i] = section.Content
		}
		embed = newTFIDF(documents, options.MaxFeatures).Embed
	}
	embed, err := cached(embed, options.CacheSize)
	if err != nil {
		return nil, err
	}

	collection, err := chromem.NewDB().GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	indexed := 0
	for i, section := range sections {
		embedding, err := embed(ctx, section.Content)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to embed section %q: %w", section.Label, err)
		}
		if isZero(embedding) {
			logger.Warn("skipping section without indexable terms", "label", section.Label)
			continue
		}

		if err := collection.AddDocument(ctx, chromem.Document{
			ID:        strconv.Itoa(i),
			Content:   section.Content,
			Embedding: embedding,
			Metadata:  map[string]string{labelKey: section.Label},
		}); err != nil {
			return nil, fmt.Errorf("failed to add section %q: %w", section.Label, err)
		}
		indexed++
	}
	span.SetAttributes(attribute.Int("knowledge_base.sections", indexed))
	logger.Info("knowledge base ready", "sections", indexed)

	return &KnowledgeBase{
		collection: collection,
		sections:   sections,
		summary:    Summary(sections),
		embed:      embed,
		topK:       options.TopK,
		minScore:   float32(options.MinScore),
	}, nil
}

// Summary returns one line per section, meant for the model's instructions so
// it knows what it can ask about.
func (kb *KnowledgeBase) Summary() string {
	return kb.summary
}

func (kb *KnowledgeBase) Sections() []Section {
	return append([]Section(nil), kb.sections...)
}

func (kb *KnowledgeBase) Count() int {
	return kb.collection.Count()
}

// Search returns up to TopK sections ranked by cosine similarity to query.
// Sections scoring at or below MinScore are left out. A query without any
// indexed term returns no references.
func (kb *KnowledgeBase) Search(ctx context.Context, query string) ([]retrieval.Reference, error) {
	ctx, span := tracer.Start(ctx, "search knowledge base",
		trace.WithAttributes(attribute.String("knowledge_base.query", query)))
	defer span.End()

	n := min(kb.topK, kb.collection.Count())
	if query == "" || n <= 0 {
		return nil, nil
	}

	embedding, err := kb.embed(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if isZero(embedding) {
		return nil, nil
	}

	results, err := kb.collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to query knowledge base: %w", err)
	}

	references := make([]retrieval.Reference, 0, len(results))
	for _, result := range results {
		if result.Similarity <= kb.minScore {
			continue
		}
		references = append(references, retrieval.Reference{
			Label:   result.Metadata[labelKey],
			Content: result.Content,
			Score:   float64(result.Similarity),
		})
	}
	span.SetAttributes(attribute.Int("knowledge_base.results", len(references)))
	return references, nil
}

func cached(embed chromem.EmbeddingFunc, size int) (chromem.EmbeddingFunc, error) {
	if size <= 0 {
		return embed, nil
	}

	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}

	return func(ctx context.Context, text string) ([]float32, error) {
		if embedding, ok := cache.Get(text); ok {
			return embedding, nil
		}
		embedding, err := embed(ctx, text)
		if err != nil {
			return nil, err
		}
		cache.Add(text, embedding)
		return embedding, nil
	}, nil
}
