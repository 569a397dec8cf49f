// Package exitcode defines the process exit statuses of the extpack tools
// and an error type that carries one of them up to main.
package exitcode
