package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ragcore/internal/rag/domain"
)

func TestClassifyPrecedenceOrder(t *testing.T) {
	cases := []struct {
		query string
		want  domain.QueryType
	}{
		{"What is the capital of France?", domain.QueryFactual},
		{"Why does this trend happen and what are the implications?", domain.QueryAnalytical},
		{"Compare the two approaches, which is better?", domain.QueryComparative},
		{"Summarize the key points of this document", domain.QuerySummarization},
		{"Give me some creative ideas for a name", domain.QueryCreative},
		{"Tell me about dogs", domain.QueryGeneral},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Classify(c.query), c.query)
	}
}

func TestClassifyFactualTakesPrecedenceOverAnalytical(t *testing.T) {
	got := Classify("What is the main reason why this analysis matters?")
	assert.Equal(t, domain.QueryFactual, got)
}
