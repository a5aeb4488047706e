package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	"github.com/maruel/markdb/internal/client"
	"github.com/maruel/markdb/internal/server/dto"
	"github.com/spf13/cobra"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <schema-file> <input-file|->",
		Short: "Validate input against schema using mdv",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			input, err := a.readInput(args[1])
			if err != nil {
				return err
			}
			c, err := a.anonClient()
			if err != nil {
				return err
			}
			res, err := c.Validate(cmd.Context(), string(input), string(schema))
			if err != nil {
				return a.apiFail(err)
			}
			if !res.Success {
				return a.fail("Error: %s", res.Error)
			}
			return writeJSON(a.stdout, res.Output)
		},
	}
}

func newListDocumentsCmd(a *app) *cobra.Command {
	var tag, query string
	cmd := &cobra.Command{
		Use:   "list-documents",
		Short: "List all documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			docs, err := c.ListDocuments(cmd.Context(), tag)
			if err != nil {
				return a.apiFail(err)
			}
			if query != "" {
				return runQuery(a.stdout, query, docs)
			}
			if len(docs) == 0 {
				yellow.Fprintln(a.stdout, "No documents found")
				return nil
			}
			green.Fprintf(a.stdout, "Found %d document(s):\n\n", len(docs))
			for _, d := range docs {
				bold.Fprintln(a.stdout, d.Name)
				dim.Fprintf(a.stdout, "  ID: %s\n", d.ID)
				dim.Fprintf(a.stdout, "  Author: %s\n", d.Author)
				dim.Fprintf(a.stdout, "  Tags: %s\n", joinTags(d.Tags))
				dim.Fprintf(a.stdout, "  Created: %s\n", localTime(d.CreatedAt))
				fmt.Fprintln(a.stdout)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "Only list documents with this tag ID")
	cmd.Flags().StringVar(&query, "query", "", "jq expression applied to the JSON list")
	return cmd
}

func newListSchemasCmd(a *app) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "list-schemas",
		Short: "List all schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			schemas, err := c.ListSchemas(cmd.Context())
			if err != nil {
				return a.apiFail(err)
			}
			if query != "" {
				return runQuery(a.stdout, query, schemas)
			}
			if len(schemas) == 0 {
				yellow.Fprintln(a.stdout, "No schemas found")
				return nil
			}
			green.Fprintf(a.stdout, "Found %d schema(s):\n\n", len(schemas))
			for _, s := range schemas {
				bold.Fprintln(a.stdout, s.Name)
				dim.Fprintf(a.stdout, "  ID: %s\n", s.ID)
				dim.Fprintf(a.stdout, "  Created: %s\n", localTime(s.CreatedAt))
				fmt.Fprintln(a.stdout)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "jq expression applied to the JSON list")
	return cmd
}

func newTagDocumentCmd(a *app) *cobra.Command {
	var add, remove []string
	cmd := &cobra.Command{
		Use:   "tag-document <document-id>",
		Short: "Add or remove tags from a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			d, err := c.GetDocument(cmd.Context(), args[0])
			if err != nil {
				return a.notFoundFail(err)
			}
			tags := applyTags(d.Tags, add, remove)
			updated, err := c.UpdateDocument(cmd.Context(), args[0], &dto.UpdateDocumentRequest{Tags: &tags})
			if err != nil {
				return a.notFoundFail(err)
			}
			green.Fprintln(a.stdout, "Document tags updated successfully")
			bold.Fprintln(a.stdout, updated.Name)
			dim.Fprintf(a.stdout, "Tags: %s\n", joinTags(updated.Tags))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&add, "add", nil, "Tag ID to add, can be repeated")
	cmd.Flags().StringArrayVar(&remove, "remove", nil, "Tag ID to remove, can be repeated")
	return cmd
}

// frontMatter is the optional YAML header of a document file.
type frontMatter struct {
	Name   string   `yaml:"name"`
	Schema string   `yaml:"schema"`
	Tags   []string `yaml:"tags"`
}

func newCreateDocumentCmd(a *app) *cobra.Command {
	var schema, name string
	var tags []string
	cmd := &cobra.Command{
		Use:   "create-document <file|->",
		Short: "Validate a Markdown file and store it as a document",
		Long: "Validate a Markdown file and store it as a document.\n\n" +
			"The file may start with a YAML front matter setting name, schema and\n" +
			"tags. Flags take precedence. The author is the current user.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := a.readInput(args[0])
			if err != nil {
				return err
			}
			var fm frontMatter
			body, err := frontmatter.Parse(bytes.NewReader(raw), &fm)
			if err != nil {
				return fmt.Errorf("failed to parse front matter: %w", err)
			}
			req := &dto.CreateDocumentRequest{
				Name:     fm.Name,
				SchemaID: fm.Schema,
				Content:  string(body),
				Tags:     fm.Tags,
			}
			if name != "" {
				req.Name = name
			}
			if req.Name == "" && args[0] != "-" {
				req.Name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			if schema != "" {
				req.SchemaID = schema
			}
			if len(tags) != 0 {
				req.Tags = tags
			}
			if req.SchemaID == "" {
				return errors.New("no schema: use --schema or set schema in the front matter")
			}
			users, err := a.users()
			if err != nil {
				return err
			}
			u, err := users.Get()
			if err != nil {
				return err
			}
			if u == nil {
				return a.fail("No user set, use \"markdb user login <email> <password>\" first")
			}
			req.Author = u.ID

			c, err := a.client()
			if err != nil {
				return err
			}
			d, err := c.CreateDocument(cmd.Context(), req)
			if err != nil {
				return a.apiFail(err)
			}
			green.Fprintln(a.stdout, "Document created successfully")
			bold.Fprintln(a.stdout, d.Name)
			dim.Fprintf(a.stdout, "ID: %s\n", d.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&schema, "schema", "", "Schema ID")
	cmd.Flags().StringVar(&name, "name", "", "Document name (default: file name)")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "Tag ID, can be repeated")
	return cmd
}

// readInput reads path, or stdin when path is "-".
func (a *app) readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(a.stdin)
	}
	return os.ReadFile(path) //nolint:gosec // G304: path is a command argument
}

func (a *app) notFoundFail(err error) error {
	var apiErr *client.Error
	if errors.As(err, &apiErr) && apiErr.Code == string(dto.ErrorCodeNotFound) {
		return a.fail("Document not found")
	}
	return a.apiFail(err)
}

// applyTags adds then removes tags, keeping the original order and
// dropping duplicates.
func applyTags(current, add, remove []string) []string {
	out := make([]string, 0, len(current)+len(add))
	for _, t := range slices.Concat(current, add) {
		if !slices.Contains(out, t) && !slices.Contains(remove, t) {
			out = append(out, t)
		}
	}
	return out
}

func joinTags(tags []string) string {
	if len(tags) == 0 {
		return "none"
	}
	return strings.Join(tags, ", ")
}

func localTime(s string) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.Local().Format(time.DateTime)
}

func writeJSON(w io.Writer, v any) error {
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
