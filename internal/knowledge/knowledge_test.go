package knowledge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreAnnouncementDepth(t *testing.T) {
	cases := map[int]Level{0: 0, 1: 0, 2: 1, 3: 2, 10: 9}
	for numRed, want := range cases {
		assert.Equal(t, want, PreAnnouncementDepth(numRed), "numRed=%d", numRed)
		assert.Equal(t, want, Initial(numRed).Level, "numRed=%d", numRed)
		assert.False(t, Initial(numRed).Announced)
	}
}

func TestAnnounceOnce(t *testing.T) {
	s := Initial(3)
	assert.True(t, s.Announce())
	assert.True(t, s.Level.IsCommon())
	assert.False(t, s.Announce())
	assert.Equal(t, Common, s.Level)
}

func TestMaxLevelFor(t *testing.T) {
	assert.Equal(t, None, MaxLevelFor(0))
	assert.Equal(t, Level(0), MaxLevelFor(1))
	assert.Equal(t, Level(3), MaxLevelFor(4))
}

func TestNested(t *testing.T) {
	assert.Equal(t, Proposition, Nested(0))
	assert.Equal(t, "everyone knows (everyone knows ("+Proposition+"))", Nested(2))
}

func TestLevelString(t *testing.T) {
	assert.Contains(t, Common.String(), "common knowledge")
	assert.Contains(t, Level(1).String(), "everyone knows")
	assert.Contains(t, Level(4).String(), "order 4")
}

func TestNarrative(t *testing.T) {
	assert.Len(t, Narrative(0), 1)
	assert.Len(t, Narrative(1), 2)

	lines := Narrative(3)
	assert.Len(t, lines, 4)
	for _, l := range lines {
		assert.True(t, strings.HasPrefix(l, "Knowledge: "), l)
	}
	assert.Contains(t, lines[3], "level 3 cannot be reached")
}
