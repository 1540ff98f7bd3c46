package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t,
		[]string{"openai", "releases", "gpt", "5", "today"},
		NormalizeTitle("OpenAI releases GPT-5, today!"),
	)
	assert.Empty(t, NormalizeTitle("!!! ..."))
}

func TestTitleSimilarityIdentical(t *testing.T) {
	tokens := NormalizeTitle("major storm hits the coast overnight")
	assert.Equal(t, 1.0, TitleSimilarity(tokens, tokens))
}

func TestTitleSimilarityShortTitlesScoreZero(t *testing.T) {
	a := NormalizeTitle("breaking news today")
	b := NormalizeTitle("breaking news today")
	assert.Equal(t, 0.0, TitleSimilarity(a, b))
}

func TestTitleSimilarityPartialOverlap(t *testing.T) {
	a := NormalizeTitle("apple unveils new iphone at september event")
	b := NormalizeTitle("apple unveils new iphone at annual keynote")
	sim := TitleSimilarity(a, b)
	assert.Greater(t, sim, 0.4)
	assert.Less(t, sim, 1.0)
}

func TestTitleSimilarityDisjoint(t *testing.T) {
	a := NormalizeTitle("central bank raises interest rates again")
	b := NormalizeTitle("local team wins championship final match")
	assert.Equal(t, 0.0, TitleSimilarity(a, b))
}
