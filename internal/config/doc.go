// Package config defines the paths and commands of a packaging run and the
// fetcher settings, with helpers to load, validate and save them as YAML or TOML.
//
// Default reproduces the historical scripts: npm install, a global gulp-cli
// install, gulp build, the asset list and vsce package.
package config
