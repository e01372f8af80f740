// Package main provides the data commands for the kiler CLI.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/kilerdb/kiler/internal/logging"
	"github.com/kilerdb/kiler/internal/storage/engine"
)

// dbFlags holds the flags shared by every data command.
type dbFlags struct {
	path     string
	logLevel string
}

func addDBFlags(fs *flag.FlagSet, f *dbFlags) {
	fs.StringVar(&f.path, "db", "kiler.db", "Path to the database file")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

func (f *dbFlags) open(readOnly bool) (*engine.DB, error) {
	opts := engine.DefaultOptions()
	opts.ReadOnly = readOnly
	if f.logLevel != "" {
		opts.Logger = logging.New(logging.Config{Level: f.logLevel, Output: "stderr"})
	}
	return engine.Open(f.path, opts)
}

// getCmd handles the get command.
func getCmd(args []string) int {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var f dbFlags
	addDBFlags(fs, &f)
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *help || *helpLong {
		printGetUsage(os.Stdout)
		return 0
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: kiler get [options] <key>")
		return 1
	}

	db, err := f.open(true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer db.Close()

	val, ok, err := db.Get([]byte(fs.Arg(0)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "Key not found: %s\n", fs.Arg(0))
		return 1
	}
	os.Stdout.Write(val)
	fmt.Println()
	return 0
}

// setCmd handles the set command.
func setCmd(args []string) int {
	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var f dbFlags
	addDBFlags(fs, &f)
	addOnly := fs.Bool("add", false, "Fail if the key already exists")
	updateOnly := fs.Bool("update", false, "Fail if the key does not exist")
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *help || *helpLong {
		printSetUsage(os.Stdout)
		return 0
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "Usage: kiler set [options] <key> <value>")
		return 1
	}
	if *addOnly && *updateOnly {
		fmt.Fprintln(os.Stderr, "Error: -add and -update are mutually exclusive")
		return 1
	}

	db, err := f.open(false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	key, val := []byte(fs.Arg(0)), []byte(fs.Arg(1))
	switch {
	case *addOnly:
		added, err := tx.Add(key, val)
		if err != nil {
			tx.Abort()
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		if !added {
			tx.Abort()
			fmt.Fprintf(os.Stderr, "Key already exists: %s\n", fs.Arg(0))
			return 1
		}
	case *updateOnly:
		updated, err := tx.Update(key, val)
		if err != nil {
			tx.Abort()
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		if !updated {
			tx.Abort()
			fmt.Fprintf(os.Stderr, "Key not found: %s\n", fs.Arg(0))
			return 1
		}
	default:
		if err := tx.Set(key, val); err != nil {
			tx.Abort()
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}
	if err := tx.Commit(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// delCmd handles the del command.
func delCmd(args []string) int {
	fs := flag.NewFlagSet("del", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var f dbFlags
	addDBFlags(fs, &f)
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *help || *helpLong {
		printDelUsage(os.Stdout)
		return 0
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: kiler del [options] <key>")
		return 1
	}

	db, err := f.open(false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	removed, err := tx.Delete([]byte(fs.Arg(0)))
	if err != nil {
		tx.Abort()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := tx.Commit(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if !removed {
		fmt.Fprintf(os.Stderr, "Key not found: %s\n", fs.Arg(0))
		return 1
	}
	return 0
}

// scanCmd handles the scan command.
func scanCmd(args []string) int {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var f dbFlags
	addDBFlags(fs, &f)
	start := fs.String("start", "", "First key of the range (inclusive)")
	end := fs.String("end", "", "End of the range (exclusive, empty scans to the last key)")
	limit := fs.Int("limit", 0, "Stop after this many keys (0 = no limit)")
	keysOnly := fs.Bool("keys-only", false, "Print keys without values")
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *help || *helpLong {
		printScanUsage(os.Stdout)
		return 0
	}

	db, err := f.open(true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer db.Close()

	var endKey []byte
	if *end != "" {
		endKey = []byte(*end)
	}
	sc, err := db.Scan([]byte(*start), endKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return printScan(os.Stdout, os.Stderr, sc, *limit, *keysOnly)
}

func printScan(stdout, stderr io.Writer, sc *engine.Scanner, limit int, keysOnly bool) int {
	n := 0
	for sc.Next() {
		if limit > 0 && n >= limit {
			break
		}
		if keysOnly {
			fmt.Fprintf(stdout, "%s\n", sc.Key())
		} else {
			fmt.Fprintf(stdout, "%s\t%s\n", sc.Key(), sc.Value())
		}
		n++
	}
	if err := sc.Err(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
