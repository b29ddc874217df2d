package knowledgebase

import chromem "github.com/philippgille/chromem-go"

type Option func(*Options)

type Options struct {
	TopK        int
	MinScore    float64
	MaxFeatures int
	CacheSize   int

	// EmbeddingFunc replaces the built-in TF-IDF vectorizer.
	EmbeddingFunc chromem.EmbeddingFunc
}

func WithTopK(topK int) Option {
	return func(o *Options) {
		if topK > 0 {
			o.TopK = topK
		}
	}
}

func WithMinScore(minScore float64) Option {
	return func(o *Options) { o.MinScore = minScore }
}

// WithMaxFeatures caps the TF-IDF vocabulary to the most frequent terms.
func WithMaxFeatures(maxFeatures int) Option {
	return func(o *Options) { o.MaxFeatures = maxFeatures }
}

// WithCacheSize sets how many embeddings are kept in memory. Zero disables
// the cache.
func WithCacheSize(size int) Option {
	return func(o *Options) { o.CacheSize = size }
}

func WithEmbeddingFunc(embed chromem.EmbeddingFunc) Option {
	return func(o *Options) { o.EmbeddingFunc = embed }
}

// WithOpenAIEmbeddings embeds sections and queries with OpenAI's
// text-embedding-3-small model instead of TF-IDF.
func WithOpenAIEmbeddings(apiKey string) Option {
	return WithEmbeddingFunc(chromem.NewEmbeddingFuncOpenAI(apiKey, chromem.EmbeddingModelOpenAI3Small))
}
