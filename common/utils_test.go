package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoalesce(t *testing.T) {
	assert.Equal(t, "grid", Coalesce("", "grid", "scene"))
	assert.Equal(t, "", Coalesce[string]())
	assert.Equal(t, FrameSlot(1), Coalesce(FrameSlot(0), FrameSlot(1)))
}
