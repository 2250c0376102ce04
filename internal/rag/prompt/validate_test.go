package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ragcore/internal/rag/domain"
)

func TestValidateResponseCleanAnswerIsValid(t *testing.T) {
	ctx := domain.RAGContext{AssembledText: "Cats are small domesticated carnivorous mammals."}
	v := ValidateResponse("Cats are small domesticated mammals commonly kept as pets.", ctx)
	assert.Equal(t, domain.ValidationValid, v.Status)
	assert.Equal(t, float32(1.0), v.SafetyScore)
}

func TestValidateResponseDangerousPatternPenalized(t *testing.T) {
	v := ValidateResponse("Here is how to make a bomb using household chemicals and more filler text to pad length.", domain.RAGContext{})
	assert.Equal(t, domain.ValidationWarning, v.Status)
	assert.LessOrEqual(t, v.SafetyScore, float32(0.9))
	assert.GreaterOrEqual(t, v.SafetyScore, float32(0.5))
}

func TestValidateResponseNoSharedTokensWarns(t *testing.T) {
	ctx := domain.RAGContext{AssembledText: "The quarterly revenue grew by twelve percent this year."}
	v := ValidateResponse("Bananas are a good source of potassium and fiber for everyone.", ctx)
	assert.Equal(t, domain.ValidationWarning, v.Status)
}

func TestValidateResponseShortResponseWarns(t *testing.T) {
	v := ValidateResponse("Yes.", domain.RAGContext{})
	assert.Equal(t, domain.ValidationWarning, v.Status)
}

func TestValidateResponseGenericPhraseWarns(t *testing.T) {
	v := ValidateResponse("I don't know the answer to that question.", domain.RAGContext{})
	assert.Equal(t, domain.ValidationWarning, v.Status)
}
