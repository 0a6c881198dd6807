package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatEGP(t *testing.T) {
	assert.Equal(t, "0.00", FormatEGP(0))
	assert.Equal(t, "0.05", FormatEGP(5))
	assert.Equal(t, "1.00", FormatEGP(100))
	assert.Equal(t, "123.45", FormatEGP(12345))
	assert.Equal(t, "-123.45", FormatEGP(-12345))
	assert.Equal(t, "10000.00", FormatEGP(1000000))
}
