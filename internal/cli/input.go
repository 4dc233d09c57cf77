package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/roach88/sqltutor/internal/er"
	"github.com/roach88/sqltutor/internal/store"
)

// readQueries reads a query file. Lines starting with "--" are comments.
// When the text contains a semicolon, queries are split on semicolons and
// may span lines; otherwise every non-blank line is one query.
func readQueries(r io.Reader) ([]string, error) {
	var kept []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	text := strings.Join(kept, "\n")
	sep := "\n"
	if strings.Contains(text, ";") {
		sep = ";"
	}
	var queries []string
	for _, q := range strings.Split(text, sep) {
		q = strings.TrimSpace(q)
		if q != "" {
			queries = append(queries, q)
		}
	}
	return queries, nil
}

// readQueryFile reads queries from path, or from stdin when path is "-".
func readQueryFile(path string, stdin io.Reader) ([]string, error) {
	if path == "-" {
		return readQueries(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readQueries(f)
}

// collectQueries gathers queries from --sql values and a --file, in that
// order.
func collectQueries(sqls []string, file string, stdin io.Reader) ([]string, error) {
	queries := append([]string(nil), sqls...)
	if file != "" {
		fromFile, err := readQueryFile(file, stdin)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read queries", err)
		}
		queries = append(queries, fromFile...)
	}
	if len(queries) == 0 {
		return nil, NewExitError(ExitCommandError, "no queries given: use --sql or --file")
	}
	return queries, nil
}

func loadSchema(path string) (*er.Schema, *er.Mapping, error) {
	if path == "" {
		return nil, nil, NewExitError(ExitCommandError, "--schema is required")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, nil, NewExitError(ExitCommandError, fmt.Sprintf("schema not found: %s", path))
	}
	s, m, err := er.LoadFile(path)
	if err != nil {
		return nil, nil, WrapExitError(ExitFailure, "failed to load schema", err)
	}
	return s, m, nil
}

// openStore opens the database at path, which must already exist unless
// create is set.
func openStore(path string, create bool) (*store.Store, error) {
	if !create {
		if _, err := os.Stat(path); err != nil {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
		}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}
