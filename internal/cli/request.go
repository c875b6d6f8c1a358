package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"

	"github.com/spf13/cobra"

	"github.com/bachuetech/bt-http-utils/httpclient"
)

// RequestOptions holds the flags of the request command.
type RequestOptions struct {
	*GlobalOptions

	Headers []string
	Params  []string
	Body    []string
	Type    string
	Include bool
}

// NewRequestCommand creates the request command.
func NewRequestCommand(globalOpts *GlobalOptions) *cobra.Command {
	opts := &RequestOptions{GlobalOptions: globalOpts}

	cmd := &cobra.Command{
		Use:   "request METHOD URL",
		Short: "Send a request and print the response body",
		Long: `Send a GET, POST, PUT, DELETE or PATCH request and print the response body.

-p values fill {name} placeholders in URL. For GET, the values that match no
placeholder are sent as query parameters; for other methods the -b values are
encoded as the request body according to --type.`,
		Example: `  # GET https://api.example.com/users/7?expand=roles
  bthttp request get 'https://api.example.com/users/{id}' -p id=7 -p expand=roles

  # POST a JSON object
  bthttp request post https://api.example.com/users -b name=ada -b role=admin`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Headers, "header", "H", nil, "extra header name=value (repeatable)")
	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "URL parameter name=value (repeatable)")
	cmd.Flags().StringArrayVarP(&opts.Body, "body", "b", nil, "body parameter name=value (repeatable)")
	cmd.Flags().StringVar(&opts.Type, "type", "json", "body encoding (json, text)")
	cmd.Flags().BoolVarP(&opts.Include, "include", "i", false, "print status, remote address and headers before the body")

	return cmd
}

func runRequest(cmd *cobra.Command, opts *RequestOptions, method, url string) error {
	headers, err := parseKV("header", opts.Headers)
	if err != nil {
		return err
	}
	params, err := parseKV("param", opts.Params)
	if err != nil {
		return err
	}
	body, err := parseKV("body", opts.Body)
	if err != nil {
		return err
	}
	ct, err := httpclient.ParseContentType(opts.Type)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	sess, err := openSession(ctx, cmd, opts.GlobalOptions)
	if err != nil {
		return err
	}
	defer sess.close()

	resp, err := sess.client.Request(ctx, method, url, headers, body, params, ct)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.Include {
		printHead(out, resp)
	}
	fmt.Fprintln(out, resp.Body)

	if resp.IsError() {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// printHead writes the status line, peer and headers in name order.
func printHead(w io.Writer, resp *httpclient.Response) {
	fmt.Fprintf(w, "HTTP %d (from %s)\n", resp.StatusCode, resp.RemoteAddress)
	names := make([]string, 0, len(resp.Headers))
	for k := range resp.Headers {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fmt.Fprintf(w, "%s: %s\n", k, resp.Headers[k])
	}
	fmt.Fprintln(w)
}
