// Package pipeline builds and packages the extension.
//
// A run installs dependencies, installs the build-CLI, runs the localized
// build, copies prebuilt assets into the output tree and invokes the
// packaging utility. Build failures abort the run; asset copies are best
// effort; the package counts as produced only if the file exists afterwards.
package pipeline
