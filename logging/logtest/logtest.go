// Package logtest provides loggers for tests.
package logtest

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"testing"
)

// NewTestLogger returns a logger that writes through t.Log
func NewTestLogger(tb testing.TB) *zap.SugaredLogger {
	return zaptest.NewLogger(tb).Sugar()
}
