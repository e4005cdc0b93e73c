package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatio(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "coffee", "coffee", 1.0},
		{"both empty", "", "", 1.0},
		{"one empty", "coffee", "", 0.0},
		{"disjoint", "abc", "xyz", 0.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ratio(tc.a, tc.b))
		})
	}
}

func TestRatioNearDuplicate(t *testing.T) {
	r := ratio("no spicy food", "no spicy foods")
	assert.GreaterOrEqual(t, r, fuzzyThreshold)
}

func TestFuzzyEqual(t *testing.T) {
	assert.True(t, fuzzyEqual("Coffee", "coffee", fuzzyThreshold))
	assert.True(t, fuzzyEqual(" coffee ", "coffee", fuzzyThreshold))
	assert.True(t, fuzzyEqual("no spicy food", "no spicy foods", fuzzyThreshold))
	assert.False(t, fuzzyEqual("coffee", "tea", fuzzyThreshold))
}

func TestDedupeFuzzy(t *testing.T) {
	in := []string{"coffee", "Coffee", "tea", "no spicy food", "no spicy foods", "pasta"}
	out := dedupeFuzzy(in)
	assert.ElementsMatch(t, []string{"coffee", "no spicy food", "pasta", "tea"}, out)
}

func TestDedupeFuzzyEmpty(t *testing.T) {
	assert.Nil(t, dedupeFuzzy(nil))
	assert.Nil(t, dedupeFuzzy([]string{}))
}
