package knowledgebase

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTermsDropStopWordsAndAddBigrams(t *testing.T) {
	assert.Equal(t,
		[]string{"retirement", "savings", "plan", "retirement savings", "savings plan"},
		terms("The retirement savings plan"))
}

func TestEmbeddingIsNormalized(t *testing.T) {
	vectorizer := newTFIDF([]string{"basic plan monthly", "retirement plan savings"}, 0)

	vector, err := vectorizer.Embed(context.Background(), "retirement plan plan")
	require.NoError(t, err)
	require.Len(t, vector, vectorizer.Dimensions())

	var norm float64
	for _, value := range vector {
		norm += float64(value) * float64(value)
	}
	assert.InDelta(t, 1, math.Sqrt(norm), 1e-5)
}

func TestRareTermsWeighMore(t *testing.T) {
	vectorizer := newTFIDF([]string{"basic plan", "retirement plan", "family plan"}, 0)

	vector, err := vectorizer.Embed(context.Background(), "retirement plan")
	require.NoError(t, err)
	assert.Greater(t, vector[vectorizer.vocabulary["retirement"]], vector[vectorizer.vocabulary["plan"]])
}

func TestMaxFeaturesKeepsMostFrequentTerms(t *testing.T) {
	vectorizer := newTFIDF([]string{"plan plan plan basic", "plan family"}, 1)

	assert.Equal(t, 1, vectorizer.Dimensions())
	assert.Contains(t, vectorizer.vocabulary, "plan")
}
