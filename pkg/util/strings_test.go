package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 7, ParseIntDefault("", 7))
	assert.Equal(t, 7, ParseIntDefault("x", 7))
	assert.Equal(t, 42, ParseIntDefault("42", 7))
}

func TestTickers(t *testing.T) {
	assert.Equal(t, "AAPL", NormalizeTicker("  aapl "))

	for _, s := range []string{"AAPL", "brk.b", "BF-B", "^GSPC", "EURUSD=X", "005930.KS"} {
		assert.True(t, IsTicker(s), s)
	}
	for _, s := range []string{"", "A B", "../etc", "TOOLONGTICKERSYMBOL", ".A"} {
		assert.False(t, IsTicker(s), s)
	}
}
