package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/txn2/dobby/pkg/request"
)

// parsedRequest is the YAML form of a request printed by the parse command.
type parsedRequest struct {
	ID        string              `yaml:"id"`
	Method    request.Method      `yaml:"method"`
	RawMethod string              `yaml:"raw_method"`
	Path      string              `yaml:"path"`
	Query     map[string][]string `yaml:"query,omitempty"`
	Headers   map[string]string   `yaml:"headers,omitempty"`
	Body      *string             `yaml:"body,omitempty"`
	Truncated bool                `yaml:"truncated,omitempty"`
}

func newParseCmd() *cobra.Command {
	var maxBodyBytes int

	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Parse one request from a file or stdin and print it as YAML",
		Example: `  printf 'GET /a?x=1&x=2 X\r\nHost: h\r\n\r\n' | dobby parse
  dobby parse request.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("opening request file: %w", err)
				}
				defer func() { _ = f.Close() }()
				in = f
			}

			parser := request.NewParser(request.WithMaxBodyBytes(maxBodyBytes))
			return parseAndPrint(parser, in, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&maxBodyBytes, "max-body-bytes", request.DefaultMaxBodyBytes, "largest accepted Content-Length")
	return cmd
}

// parseAndPrint parses one request from in and writes it to out. A request
// with a truncated body is printed before the error is returned.
func parseAndPrint(parser *request.Parser, in io.Reader, out io.Writer) error {
	req, err := parser.Parse(in)
	if req == nil {
		return fmt.Errorf("parsing request: %w", err)
	}

	doc := toParsedRequest(req)
	doc.Truncated = errors.Is(err, request.ErrTruncatedBody)

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if encErr := enc.Encode(doc); encErr != nil {
		return fmt.Errorf("encoding request: %w", encErr)
	}
	if encErr := enc.Close(); encErr != nil {
		return fmt.Errorf("encoding request: %w", encErr)
	}

	if err != nil {
		return fmt.Errorf("parsing request: %w", err)
	}
	return nil
}

func toParsedRequest(req *request.Request) parsedRequest {
	doc := parsedRequest{
		ID:        req.ID(),
		Method:    req.Method(),
		RawMethod: req.RawMethod(),
		Path:      req.Path(),
		Headers:   req.Headers(),
	}
	if keys := req.QueryKeys(); len(keys) > 0 {
		doc.Query = make(map[string][]string, len(keys))
		for _, k := range keys {
			doc.Query[k] = req.Query(k)
		}
	}
	if req.HasBody() {
		body := req.Body()
		doc.Body = &body
	}
	return doc
}
