// Package logger provides a small wrapper around zap to offer:
//   - a sugared console logger writing to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing,
//   - convenience functions (Infof, WarnKV, etc.).
//
// Every pipeline component receives a context and extracts the logger from it,
// so one invocation carries one scoped logger end to end.
package logger
