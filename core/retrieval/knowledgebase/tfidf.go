package knowledgebase

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
)

const defaultMaxFeatures = 5000

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]{2,}`)

// stopWords is a short list of English function words that carry no meaning
// for ranking.
var stopWords = map[string]struct{}{
	"a": {}, "about": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "can": {}, "do": {}, "does": {}, "for": {}, "from": {}, "has": {},
	"have": {}, "how": {}, "if": {}, "in": {}, "into": {}, "is": {}, "it": {}, "its": {},
	"me": {}, "my": {}, "of": {}, "on": {}, "or": {}, "our": {}, "so": {}, "that": {},
	"the": {}, "their": {}, "them": {}, "there": {}, "these": {}, "they": {}, "this": {},
	"to": {}, "was": {}, "we": {}, "what": {}, "when": {}, "which": {}, "who": {}, "will": {},
	"with": {}, "you": {}, "your": {},
}

// tfidf is a vectorizer fitted on a fixed corpus. Terms are lower-cased
// unigrams and bigrams without stop words. Vectors use sublinear term
// frequency, smoothed inverse document frequency and are L2 normalized, so
// a dot product between two vectors is their cosine similarity.
type tfidf struct {
	vocabulary map[string]int
	idf        []float64
}

func newTFIDF(documents []string, maxFeatures int) *tfidf {
	if maxFeatures <= 0 {
		maxFeatures = defaultMaxFeatures
	}

	documentFrequency := map[string]int{}
	corpusFrequency := map[string]int{}
	for _, document := range documents {
		seen := map[string]struct{}{}
		for _, term := range terms(document) {
			corpusFrequency[term]++
			if _, ok := seen[term]; !ok {
				seen[term] = struct{}{}
				documentFrequency[term]++
			}
		}
	}

	vocabulary := make([]string, 0, len(corpusFrequency))
	for term := range corpusFrequency {
		vocabulary = append(vocabulary, term)
	}
	sort.Slice(vocabulary, func(i, j int) bool {
		if corpusFrequency[vocabulary[i]] != corpusFrequency[vocabulary[j]] {
			return corpusFrequency[vocabulary[i]] > corpusFrequency[vocabulary[j]]
		}
		return vocabulary[i] < vocabulary[j]
	})
	if len(vocabulary) > maxFeatures {
		vocabulary = vocabulary[:maxFeatures]
	}
	sort.Strings(vocabulary)

	v := &tfidf{
		vocabulary: make(map[string]int, len(vocabulary)),
		idf:        make([]float64, len(vocabulary)),
	}
	n := float64(len(documents))
	for i, term := range vocabulary {
		v.vocabulary[term] = i
		v.idf[i] = math.Log((1+n)/(1+float64(documentFrequency[term]))) + 1
	}
	return v
}

func (v *tfidf) Dimensions() int {
	return len(v.idf)
}

// Embed satisfies chromem.EmbeddingFunc. Text without any known term maps to
// the zero vector.
func (v *tfidf) Embed(_ context.Context, text string) ([]float32, error) {
	counts := map[int]int{}
	for _, term := range terms(text) {
		if index, ok := v.vocabulary[term]; ok {
			counts[index]++
		}
	}

	vector := make([]float32, len(v.idf))
	var norm float64
	for index, count := range counts {
		weight := (1 + math.Log(float64(count))) * v.idf[index]
		vector[index] = float32(weight)
		norm += weight * weight
	}
	if norm == 0 {
		return vector, nil
	}

	norm = math.Sqrt(norm)
	for index := range counts {
		vector[index] = float32(float64(vector[index]) / norm)
	}
	return vector, nil
}

func terms(text string) []string {
	var words []string
	for _, word := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if _, ok := stopWords[word]; ok {
			continue
		}
		words = append(words, word)
	}

	result := make([]string, 0, 2*len(words))
	result = append(result, words...)
	for i := 0; i+1 < len(words); i++ {
		result = append(result, words[i]+" "+words[i+1])
	}
	return result
}

func isZero(vector []float32) bool {
	for _, value := range vector {
		if value != 0 {
			return false
		}
	}
	return true
}
