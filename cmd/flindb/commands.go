package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/skshohagmiah/flindb/internal/db"
	"github.com/skshohagmiah/flindb/internal/shell"
	"github.com/skshohagmiah/flindb/internal/value"
)

const historyFile = ".flindb_history"

func (a *app) shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell <db>",
		Short: "Interactive shell over a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := a.open(ctx, args[0])
			if err != nil {
				return err
			}
			defer d.Close()

			line := liner.NewLiner()
			defer line.Close()
			line.SetCtrlCAborts(true)
			line.SetCompleter(func(prefix string) []string {
				var out []string
				for _, c := range shell.Commands {
					if strings.HasPrefix(c, prefix) {
						out = append(out, c)
					}
				}
				return out
			})

			history := filepath.Join(a.cfg.DataDir, historyFile)
			if f, err := os.Open(history); err == nil {
				line.ReadHistory(f)
				f.Close()
			}
			defer func() {
				if f, err := os.Create(history); err == nil {
					line.WriteHistory(f)
					f.Close()
				}
			}()

			out := cmd.OutOrStdout()
			sh := shell.New(ctx, d, out)
			fmt.Fprintf(out, "flindb %s, database %q. Type help for commands.\n", version, d.Name())
			for {
				input, err := line.Prompt(sh.Prompt())
				if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
					fmt.Fprintln(out)
					return nil
				}
				if err != nil {
					return err
				}
				if strings.TrimSpace(input) != "" {
					line.AppendHistory(input)
				}
				err = sh.Exec(input)
				if errors.Is(err, shell.ErrExit) {
					return nil
				}
				if err != nil {
					fmt.Fprintf(out, "error: %v\n", err)
				}
			}
		},
	}
}

func (a *app) findCmd() *cobra.Command {
	var (
		sortBy        string
		desc          bool
		limit, offset int
	)
	cmd := &cobra.Command{
		Use:   "find <db> <collection> [query-json]",
		Short: "Print matching documents as JSON lines",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := map[string]any{}
			if len(args) == 3 {
				if err := json.Unmarshal([]byte(args[2]), &q); err != nil {
					return fmt.Errorf("invalid query: %w", err)
				}
				q = value.Decode(q).(map[string]any)
			}
			d, err := a.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer d.Close()
			c, err := d.GetCollection(args[1])
			if err != nil {
				return err
			}

			rs := c.Chain().Find(q)
			if sortBy != "" {
				rs = rs.SimpleSort(sortBy, desc)
			}
			if offset > 0 {
				rs = rs.Offset(offset)
			}
			if limit > 0 {
				rs = rs.Limit(limit)
			}
			docs, err := rs.Data()
			if err != nil {
				return err
			}
			return shell.PrintDocuments(cmd.OutOrStdout(), docs)
		},
	}
	cmd.Flags().StringVar(&sortBy, "sort", "", "sort by field")
	cmd.Flags().BoolVar(&desc, "desc", false, "sort descending")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum documents to print")
	cmd.Flags().IntVar(&offset, "offset", 0, "documents to skip")
	return cmd
}

// readDocuments accepts a JSON array of objects or one object per line.
func readDocuments(r io.Reader) ([]db.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)

	var raw []map[string]any
	if bytes.HasPrefix(data, []byte("[")) {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		for dec.More() {
			var m map[string]any
			if err := dec.Decode(&m); err != nil {
				return nil, fmt.Errorf("document %d: %w", len(raw)+1, err)
			}
			raw = append(raw, m)
		}
	}

	docs := make([]db.Document, 0, len(raw))
	for i, m := range raw {
		if m == nil {
			return nil, fmt.Errorf("document %d is not an object", i+1)
		}
		doc := value.Decode(m).(map[string]any)
		// imported ids are reassigned
		delete(doc, db.FieldID)
		docs = append(docs, db.Document(doc))
	}
	return docs, nil
}

func (a *app) importCmd() *cobra.Command {
	var indices, ranged, unique []string
	cmd := &cobra.Command{
		Use:   "import <db> <collection> <file>",
		Short: "Insert documents from a JSON array or JSON lines file (- for stdin)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if args[2] != "-" {
				f, err := os.Open(args[2])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			docs, err := readDocuments(in)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			d, err := a.open(ctx, args[0])
			if err != nil {
				return err
			}
			defer d.Close()

			opts := db.CollectionOptions{Indices: indices, Unique: unique}
			if len(ranged) > 0 {
				opts.RangedIndexes = make(map[string]db.RangedIndexOptions, len(ranged))
				for _, f := range ranged {
					opts.RangedIndexes[f] = db.RangedIndexOptions{}
				}
			}
			c, err := d.AddCollection(args[1], opts)
			if err != nil {
				return err
			}
			ids, err := c.InsertMany(docs)
			if err != nil {
				return err
			}
			if err := d.SaveDatabase(ctx); err != nil {
				return err
			}
			a.log.Info("import finished",
				zap.String("collection", c.Name()),
				zap.Int("documents", len(ids)))
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d documents into %s\n", len(ids), c.Name())
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&indices, "index", nil, "binary index fields for a new collection")
	cmd.Flags().StringSliceVar(&ranged, "ranged", nil, "ranged index fields for a new collection")
	cmd.Flags().StringSliceVar(&unique, "unique", nil, "unique fields for a new collection")
	return cmd
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <db>",
		Short: "Show collections, document counts and indexes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer d.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "database %s (snapshot %s)\n", d.Name(), d.SnapshotID())
			for _, name := range d.ListCollections() {
				c, _ := d.GetCollection(name)
				fmt.Fprintf(out, "  %s: %d documents, max id %d\n", name, c.Len(), c.MaxID())
				for _, idx := range c.Indexes() {
					fmt.Fprintf(out, "    %-8s %s (%d)\n", idx.Kind, idx.Field, idx.Entries)
				}
			}
			return nil
		},
	}
}

func (a *app) validateCmd() *cobra.Command {
	var repair bool
	cmd := &cobra.Command{
		Use:   "validate <db>",
		Short: "Check every index against the documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := a.open(ctx, args[0])
			if err != nil {
				return err
			}
			defer d.Close()

			out := cmd.OutOrStdout()
			var broken int
			for _, name := range d.ListCollections() {
				c, _ := d.GetCollection(name)
				if err := c.CheckIndexes(); err != nil {
					broken++
					fmt.Fprintf(out, "%s: %v\n", name, err)
					if repair {
						fields, err := c.ValidateIndexes()
						fmt.Fprintf(out, "%s: rebuilt %s\n", name, strings.Join(fields, ", "))
						if err != nil {
							return err
						}
					}
				}
			}
			if broken == 0 {
				fmt.Fprintln(out, "all indexes valid")
				return nil
			}
			if repair {
				return d.SaveDatabase(ctx)
			}
			return fmt.Errorf("%d collection(s) with inconsistent indexes", broken)
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "rebuild broken indexes and save")
	return cmd
}
