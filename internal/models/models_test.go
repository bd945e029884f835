package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidCategory(t *testing.T) {
	for _, c := range Categories() {
		assert.True(t, ValidCategory(c), "category %q", c)
	}
	assert.False(t, ValidCategory("denúncia"), "category comparison is exact")
	assert.False(t, ValidCategory("Outro"))
	assert.False(t, ValidCategory(""))
}

func TestValidStatus(t *testing.T) {
	for _, s := range []string{StatusReceived, StatusInAnalysis, StatusResolved, StatusArchived} {
		assert.True(t, ValidStatus(s), "status %q", s)
	}
	assert.False(t, ValidStatus("pending"))
	assert.False(t, ValidStatus("Received"))
	assert.False(t, ValidStatus(""))
}
