// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console encoder used for progress output,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing for the --log-level flag,
//   - convenience functions (InfoKV, ErrorKV, etc.).
//
// Pipeline steps and the fetcher receive a context and extract the logger
// from it, so every message carries the tool name and run identifier.
package logger
