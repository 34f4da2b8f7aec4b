package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens("", 0))
	assert.Equal(t, 2, EstimateTokens("abcdef", 0))
	assert.Equal(t, 6, EstimateTokens("abcdef", 1))
	assert.Equal(t, 1, EstimateTokens("abcdef", 8))
}

// 波斯文每字符 2 字节。
func TestMeasure(t *testing.T) {
	s := Measure("کفش")
	assert.Equal(t, Size{Bytes: 6, Runes: 3, Tokens: 2}, s)
	assert.Equal(t, Size{}, Measure(""))
}
