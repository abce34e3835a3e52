// Copyright 2025 James Ross
package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimplifiedToTraditionalConvertsKnownCharacters(t *testing.T) {
	assert.Equal(t, "這個", simplifiedToTraditional("这个"))
	assert.Equal(t, "我說這件事", simplifiedToTraditional("我说这件事"))
}

func TestSimplifiedToTraditionalLeavesUnknownCharactersUntouched(t *testing.T) {
	assert.Equal(t, "hello 世界", simplifiedToTraditional("hello 世界"))
}

func TestSimplifiedToTraditionalEmptyString(t *testing.T) {
	assert.Equal(t, "", simplifiedToTraditional(""))
}
