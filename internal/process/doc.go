// Package process runs external tools and reports their outcome as a
// structured Result instead of an implicit global exit status.
//
// Runner is the seam used by the packaging pipeline; ExecRunner is the
// os/exec implementation, tests substitute scripted runners.
package process
