package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/scorm"
)

type record struct {
	Scope scorm.Scope `json:"scope"`
	scorm.PackageMetadata
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var ingestCmd = &cli.Command{
	Name:  "ingest",
	Usage: "store and unpack a package archive for a block",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "org", Required: true},
		&cli.StringFlag{Name: "course", Required: true},
		&cli.StringFlag{Name: "block-type", Value: "scorm"},
		&cli.StringFlag{Name: "block-id", Required: true},
		&cli.StringFlag{Name: "file", Required: true, Usage: "path to the .zip archive"},
		&cli.StringFlag{Name: "display-name", Usage: "defaults to the archive file name"},
	},
	Action: func(c *cli.Context) error {
		s := scorm.Scope{
			Org:       c.String("org"),
			Course:    c.String("course"),
			BlockType: c.String("block-type"),
			BlockID:   c.String("block-id"),
		}
		path := c.String("file")
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		name := c.String("display-name")
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}

		b, err := openBackends(c)
		if err != nil {
			return err
		}
		defer b.Close()

		meta, err := b.Pipeline.Ingest(c.Context, scorm.Upload{
			Scope:       s,
			Body:        f,
			FileName:    filepath.Base(path),
			DisplayName: name,
		})
		if err != nil {
			return err
		}
		return printJSON(c.App.Writer, record{Scope: s, PackageMetadata: meta})
	},
}

var showCmd = &cli.Command{
	Name:  "show",
	Usage: "print the package record of a block",
	Flags: []cli.Flag{scopeFlag()},
	Action: func(c *cli.Context) error {
		s, err := parseScope(c)
		if err != nil {
			return err
		}
		b, err := openBackends(c)
		if err != nil {
			return err
		}
		defer b.Close()

		meta, err := b.Pipeline.Metadata(c.Context, s)
		if err != nil {
			return err
		}
		return printJSON(c.App.Writer, record{Scope: s, PackageMetadata: meta})
	},
}

var purgeCmd = &cli.Command{
	Name:  "purge",
	Usage: "remove the archive, unpacked tree and record of a block",
	Flags: []cli.Flag{scopeFlag()},
	Action: func(c *cli.Context) error {
		s, err := parseScope(c)
		if err != nil {
			return err
		}
		b, err := openBackends(c)
		if err != nil {
			return err
		}
		defer b.Close()

		if err := b.Pipeline.Purge(c.Context, s); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "purged %s\n", s)
		return nil
	},
}

var fetchCmd = &cli.Command{
	Name:  "fetch",
	Usage: "copy the stored archive of a block to a file or stdout",
	Flags: []cli.Flag{
		scopeFlag(),
		&cli.StringFlag{Name: "out", Value: "-", Usage: "destination path, - for stdout"},
	},
	Action: func(c *cli.Context) error {
		s, err := parseScope(c)
		if err != nil {
			return err
		}
		b, err := openBackends(c)
		if err != nil {
			return err
		}
		defer b.Close()

		name, err := b.Pipeline.ArchivePath(c.Context, s)
		if err != nil {
			return err
		}
		src, err := b.Storage.Open(c.Context, name)
		if err != nil {
			return err
		}
		defer src.Close()

		dst := c.App.Writer
		if out := c.String("out"); out != "-" {
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			dst = f
		}
		if _, err := io.Copy(dst, src); err != nil {
			return fmt.Errorf("copy %s: %w", name, err)
		}
		return nil
	},
}

var listCmd = &cli.Command{
	Name:  "list",
	Usage: "list package records in scope order",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "prefix", Usage: "only scopes starting with this, e.g. org1/course1"},
	},
	Action: func(c *cli.Context) error {
		b, err := openBackends(c)
		if err != nil {
			return err
		}
		defer b.Close()

		entries, err := b.Records.List(c.Context)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SCOPE\tDISPLAY NAME\tLAST UPDATED\tCONTENT HASH")
		prefix := c.String("prefix")
		for _, e := range entries {
			if !strings.HasPrefix(e.Scope.Key(), prefix) {
				continue
			}
			updated := "-"
			if !e.Metadata.LastUpdated.IsZero() {
				updated = e.Metadata.LastUpdated.Format(time.RFC3339)
			}
			hash := e.Metadata.ContentHash
			if hash == "" {
				hash = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Scope, e.Metadata.DisplayName, updated, hash)
		}
		return tw.Flush()
	},
}
