package events

import "github.com/koscakluka/ema-dialogue/core/retrieval"

const KindRetrievalResults Kind = "rag_results"

type RetrievalResults struct {
	Base
	Query   string
	Results []retrieval.Snippet
}

func NewRetrievalResults(query string, results []retrieval.Snippet) RetrievalResults {
	return RetrievalResults{Base: NewBase(KindRetrievalResults), Query: query, Results: results}
}
