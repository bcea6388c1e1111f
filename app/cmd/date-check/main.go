package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"tasktalk/app/core/nlp/dates"
)

// date-check runs each argument through the date parser and prints how
// it resolved. Handy when a user phrase fails in chat and the exact
// interpretation needs checking.
func main() {
	nowFlag := flag.String("now", "", "reference time as RFC3339 (default: current time)")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: date-check [-now RFC3339] <phrase> [phrase ...]")
		os.Exit(2)
	}

	now := time.Now()
	if *nowFlag != "" {
		parsed, err := time.Parse(time.RFC3339, *nowFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "date check failed: invalid -now value: %v\n", err)
			os.Exit(2)
		}
		now = parsed
	}

	failures := 0
	for _, phrase := range flag.Args() {
		resolved, err := dates.Parse(phrase, now)
		if err != nil {
			fmt.Printf("%-30q -> unparsed (%v)\n", phrase, err)
			failures++
			continue
		}
		fmt.Printf("%-30q -> %s (%s)\n", phrase, resolved.Format("2006-01-02 15:04"), dates.FormatRelative(resolved, now))
	}
	if failures > 0 {
		os.Exit(1)
	}
}
