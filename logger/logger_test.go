package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewAppliesLevelFloor(t *testing.T) {
	l := New(int(zerolog.WarnLevel), "json", false)
	assert.Equal(t, zerolog.WarnLevel, l.GetLevel())
}

func TestNewDefaultsToConsoleFormat(t *testing.T) {
	// Anything other than "json" falls back to the console writer; the
	// constructor must not reject unknown formats.
	l := New(int(zerolog.InfoLevel), "pretty", true)
	assert.Equal(t, zerolog.InfoLevel, l.GetLevel())
}
