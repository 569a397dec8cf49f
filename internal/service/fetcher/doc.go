// Package fetcher downloads a built package and sanity-checks it.
//
// A run moves through awaiting-args, downloading and validating and ends in
// one terminal state, each mapped to its own process exit status:
// ok (0), missing-args (1), missing-url (2), too-small (3) and
// download-failed (4). The target file is only replaced once the download
// passed validation.
package fetcher
