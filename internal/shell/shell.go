// Package shell interprets the line commands of the interactive flindb
// shell against an open database.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"

	"github.com/skshohagmiah/flindb/internal/db"
	"github.com/skshohagmiah/flindb/internal/value"
)

// ErrExit is returned by Exec when the user asks to leave.
var ErrExit = errors.New("exit")

// Commands lists the shell verbs, used for completion.
var Commands = []string{
	"collections", "count", "exit", "find", "help", "index", "insert",
	"rangedindex", "remove", "save", "sort", "unique", "update", "use",
}

const helpText = `Commands:
  use <collection>             select (and create) a collection
  collections                  list collections
  insert <doc-json>            insert a document
  find [query-json]            print matching documents
  count [query-json]           count matching documents
  sort <field> [desc]          sort later finds by field; "sort" alone clears
  update <query-json> <json>   merge fields into matching documents
  remove <query-json>          remove matching documents
  index <field>                ensure a binary index
  rangedindex <field>          ensure a ranged index
  unique <field>               ensure a unique index
  save                         save the database through its adapter
  exit                         leave the shell`

// Shell holds the per-session state.
type Shell struct {
	ctx context.Context
	db  *db.Database
	out io.Writer

	coll     *db.Collection
	sortBy   string
	sortDesc bool
}

// New creates a shell writing results to out.
func New(ctx context.Context, database *db.Database, out io.Writer) *Shell {
	return &Shell{ctx: ctx, db: database, out: out}
}

// Prompt shows the selected collection.
func (s *Shell) Prompt() string {
	if s.coll == nil {
		return s.db.Name() + "> "
	}
	return s.db.Name() + "/" + s.coll.Name() + "> "
}

// Exec runs one command line.
func (s *Shell) Exec(line string) error {
	verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(verb) {
	case "":
		return nil
	case "exit", "quit":
		return ErrExit
	case "help":
		fmt.Fprintln(s.out, helpText)
		return nil
	case "collections":
		for _, name := range s.db.ListCollections() {
			c, _ := s.db.GetCollection(name)
			fmt.Fprintf(s.out, "%s\t%d\n", name, c.Len())
		}
		return nil
	case "use":
		if rest == "" {
			return errors.New("usage: use <collection>")
		}
		c, err := s.db.AddCollection(rest, db.CollectionOptions{})
		if err != nil {
			return err
		}
		s.coll = c
		s.sortBy, s.sortDesc = "", false
		return nil
	case "save":
		if err := s.db.SaveDatabase(s.ctx); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "saved %s\n", s.db.SnapshotID())
		return nil
	}

	if s.coll == nil {
		return errors.New("no collection selected, try: use <collection>")
	}

	switch strings.ToLower(verb) {
	case "insert":
		docs, err := decodeArgs(rest, 1)
		if err != nil {
			return err
		}
		id, err := s.coll.Insert(db.Document(docs[0]))
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "inserted %d\n", id)
	case "find":
		q, err := optionalQuery(rest)
		if err != nil {
			return err
		}
		rs := s.coll.Chain().Find(q)
		if s.sortBy != "" {
			rs = rs.SimpleSort(s.sortBy, s.sortDesc)
		}
		docs, err := rs.Data()
		if err != nil {
			return err
		}
		return PrintDocuments(s.out, docs)
	case "count":
		q, err := optionalQuery(rest)
		if err != nil {
			return err
		}
		n, err := s.coll.Count(q)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, n)
	case "sort":
		field, dir, _ := strings.Cut(rest, " ")
		s.sortBy = field
		s.sortDesc = strings.EqualFold(strings.TrimSpace(dir), "desc")
	case "update":
		args, err := decodeArgs(rest, 2)
		if err != nil {
			return err
		}
		patch := args[1]
		n, err := s.coll.FindAndUpdate(args[0], func(d db.Document) {
			for k, v := range patch {
				d[k] = v
			}
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "updated %d\n", n)
	case "remove":
		args, err := decodeArgs(rest, 1)
		if err != nil {
			return err
		}
		n, err := s.coll.FindAndRemove(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "removed %d\n", n)
	case "index", "rangedindex", "unique":
		if rest == "" {
			return fmt.Errorf("usage: %s <field>", verb)
		}
		var err error
		switch strings.ToLower(verb) {
		case "index":
			err = s.coll.EnsureIndex(rest)
		case "rangedindex":
			err = s.coll.EnsureRangedIndex(rest)
		default:
			err = s.coll.EnsureUniqueIndex(rest)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%s ready on %s\n", verb, rest)
	default:
		return fmt.Errorf("unknown command %q, try: help", verb)
	}
	return nil
}

func optionalQuery(rest string) (map[string]any, error) {
	if rest == "" {
		return nil, nil
	}
	args, err := decodeArgs(rest, 1)
	if err != nil {
		return nil, err
	}
	return args[0], nil
}

// decodeArgs reads exactly n JSON objects from s.
func decodeArgs(s string, n int) ([]map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	out := make([]map[string]any, 0, n)
	for range n {
		var m map[string]any
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("expected %d JSON object(s): %w", n, err)
		}
		if m == nil {
			return nil, fmt.Errorf("expected %d JSON object(s)", n)
		}
		out = append(out, m)
	}
	if dec.More() {
		return nil, fmt.Errorf("expected %d JSON object(s), got more", n)
	}
	return out, nil
}

// PrintDocuments writes one JSON document per line, dates and non-finite
// numbers in their tagged form.
func PrintDocuments(w io.Writer, docs []db.Document) error {
	var buf bytes.Buffer
	for _, d := range docs {
		line, err := json.Marshal(value.Encode(map[string]any(d)))
		if err != nil {
			return err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	_, err := w.Write(buf.Bytes())
	return err
}
