package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage information to the given writer.
func printUsage(w io.Writer) {
	fmt.Fprint(w, `kiler - Single-file embedded key/value database

Usage:
  kiler <command> [options]

Commands:
  get         Read the value for a key
  set         Write a key/value pair
  del         Delete a key
  scan        List keys in a range
  stat        Show database statistics
  browse      Browse keys interactively
  version     Show version information

Use "kiler <command> -h" for more information about a command.
`)
}

// printGetUsage prints the get command usage.
func printGetUsage(w io.Writer) {
	fmt.Fprint(w, `Read the value for a key

Usage:
  kiler get [options] <key>

Options:
  -db string
        Path to the database file (default "kiler.db")
  -log-level string
        Log level: debug, info, warn, error
  -h, -help
        Show this help message
`)
}

// printSetUsage prints the set command usage.
func printSetUsage(w io.Writer) {
	fmt.Fprint(w, `Write a key/value pair

Usage:
  kiler set [options] <key> <value>

Options:
  -db string
        Path to the database file (default "kiler.db")
  -add
        Fail if the key already exists
  -update
        Fail if the key does not exist
  -log-level string
        Log level: debug, info, warn, error
  -h, -help
        Show this help message
`)
}

// printDelUsage prints the del command usage.
func printDelUsage(w io.Writer) {
	fmt.Fprint(w, `Delete a key

Usage:
  kiler del [options] <key>

Exits with status 1 if the key does not exist.

Options:
  -db string
        Path to the database file (default "kiler.db")
  -log-level string
        Log level: debug, info, warn, error
  -h, -help
        Show this help message
`)
}

// printScanUsage prints the scan command usage.
func printScanUsage(w io.Writer) {
	fmt.Fprint(w, `List keys in a range

Usage:
  kiler scan [options]

Options:
  -db string
        Path to the database file (default "kiler.db")
  -start string
        First key of the range (inclusive)
  -end string
        End of the range (exclusive, empty scans to the last key)
  -limit int
        Stop after this many keys (0 = no limit)
  -keys-only
        Print keys without values
  -h, -help
        Show this help message
`)
}

// printStatUsage prints the stat command usage.
func printStatUsage(w io.Writer) {
	fmt.Fprint(w, `Show database statistics

Usage:
  kiler stat [options]

Options:
  -db string
        Path to the database file (default "kiler.db")
  -plain
        Print unstyled key=value output
  -h, -help
        Show this help message
`)
}

// printBrowseUsage prints the browse command usage.
func printBrowseUsage(w io.Writer) {
	fmt.Fprint(w, `Browse keys interactively

Opens a read-only terminal UI over the database. Navigate with the
arrow keys, press n to load the next page of keys, q to quit.

Usage:
  kiler browse [options]

Options:
  -db string
        Path to the database file (default "kiler.db")
  -start string
        First key to show
  -h, -help
        Show this help message
`)
}

// printVersionUsage prints the version command usage.
func printVersionUsage(w io.Writer) {
	fmt.Fprint(w, `Show version information

Usage:
  kiler version [options]

Options:
  -short
        Show only version number
  -h, -help
        Show this help message
`)
}
