package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundaryPriority_Ordering(t *testing.T) {
	assert.Equal(t, 1.0, BoundaryPriority(BoundarySectionBreak))
	assert.Equal(t, 1.0, BoundaryPriority(BoundaryHeading))
	assert.Equal(t, 1.0, BoundaryPriority(BoundaryCodeBlock))
	assert.Equal(t, 1.0, BoundaryPriority(BoundaryTable))
	assert.Equal(t, 0.9, BoundaryPriority(BoundaryHorizontalRule))
	assert.Equal(t, 0.8, BoundaryPriority(BoundaryParagraph))
	assert.Equal(t, 0.8, BoundaryPriority(BoundaryQuote))
	assert.Equal(t, 0.7, BoundaryPriority(BoundaryListItem))
	assert.Equal(t, 0.5, BoundaryPriority(BoundarySentence))
	assert.Equal(t, 0.0, BoundaryPriority(BoundaryKind("unknown")))

	assert.Greater(t, BoundaryPriority(BoundarySectionBreak), BoundaryPriority(BoundaryHorizontalRule))
	assert.Greater(t, BoundaryPriority(BoundaryHorizontalRule), BoundaryPriority(BoundaryParagraph))
	assert.Greater(t, BoundaryPriority(BoundaryParagraph), BoundaryPriority(BoundaryListItem))
	assert.Greater(t, BoundaryPriority(BoundaryListItem), BoundaryPriority(BoundarySentence))
}
