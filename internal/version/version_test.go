package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFullInfo(t *testing.T) {
	assert.Contains(t, FullInfo(), "rubyidx "+Version)
	assert.Equal(t, Version, Info())
}

func TestBuildID_Stable(t *testing.T) {
	id := BuildID()
	assert.NotEmpty(t, id)
	assert.Equal(t, id, BuildID())
}
