package logic

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTitle_ShortContentKeptExactly(t *testing.T) {
	assert.Equal(t, "How do I write a DAX measure?", DeriveTitle("How do I write a DAX measure?"))
}

func TestDeriveTitle_ExactlyFiftyCharacters(t *testing.T) {
	content := strings.Repeat("a", 50)
	assert.Equal(t, content, DeriveTitle(content))
}

func TestDeriveTitle_LongContentTruncated(t *testing.T) {
	content := strings.Repeat("b", 51)
	assert.Equal(t, strings.Repeat("b", 50)+"...", DeriveTitle(content))
}

func TestDeriveTitle_CountsCharactersNotBytes(t *testing.T) {
	content := strings.Repeat("ä", 50)
	assert.Equal(t, content, DeriveTitle(content))

	long := strings.Repeat("ä", 60)
	assert.Equal(t, strings.Repeat("ä", 50)+"...", DeriveTitle(long))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "hello", Preview("  hello  ", 10))
	assert.Equal(t, "hel...", Preview("hello", 3))
}
