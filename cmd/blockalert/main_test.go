package main

import (
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignalName(t *testing.T) {
	assert.Equal(t, "SIGINT", signalName(os.Interrupt))
	assert.Equal(t, "SIGTERM", signalName(syscall.SIGTERM))
}
