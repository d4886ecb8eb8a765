// Package cmd implements the command-line interface of loadit. It opens (or
// creates) a shard store over a line based text file and exposes the lazy
// sequence on the command line.
//
// The package is organized into subpackages:
//
//   - dataset: Commands working on a store (build, info, get, scan)
//   - util: Shared utilities for flags and configuration (internal use)
//
// Every flag can also be set through a LOADIT_* environment variable or an
// .env file, e.g. LOADIT_ROOT_DIR=/data/corpus.
//
// See loadit -help for a list of all commands.
package cmd
