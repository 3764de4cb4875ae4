package main

import (
	"fmt"
	"log"
	"os"

	"github.com/scholarseva/intake/internal/lookup"
	"github.com/scholarseva/intake/internal/tabular"
)

// tablecheck validates a reference table before it is deployed: it loads the
// file, runs the same normalization the lookup endpoint uses and reports
// schema problems and unparsable dates.
func main() {
	path := os.Getenv("STUDENT_TABLE")
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	if path == "" {
		log.Fatal("usage: tablecheck <table file> (or set STUDENT_TABLE)")
	}

	store := tabular.NewStore(path)
	header, rows, err := store.Load()
	if err != nil {
		log.Fatalf("cannot load %s: %v", path, err)
	}

	tbl, err := lookup.Prepare(header, rows)
	if err != nil {
		log.Fatalf("schema problem in %s: %v", path, err)
	}

	fmt.Printf("%s: %d row(s), %d column(s)\n", path, tbl.Len(), len(header))
	if n := tbl.UnknownDOBCount(); n > 0 {
		fmt.Printf("warning: %d row(s) with unparsable Date of Birth; these can never match a lookup\n", n)
	}
}
