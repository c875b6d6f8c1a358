package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/bachuetech/bt-http-utils/httpclient"
)

// StreamOptions holds the flags of the stream command.
type StreamOptions struct {
	*GlobalOptions

	Headers []string
	Data    string
	Type    string
}

// NewStreamCommand creates the stream command.
func NewStreamCommand(globalOpts *GlobalOptions) *cobra.Command {
	opts := &StreamOptions{GlobalOptions: globalOpts}

	cmd := &cobra.Command{
		Use:   "stream URL",
		Short: "POST a body and print the response as it arrives",
		Long: `POST a pre-serialized body and print each response chunk as soon as it is read.

The --timeout flag does not apply; interrupt with Ctrl+C to stop early.`,
		Example: `  bthttp stream http://localhost:11434/api/generate --data '{"model":"llama3","prompt":"hi"}'`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStream(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Headers, "header", "H", nil, "extra header name=value (repeatable)")
	cmd.Flags().StringVarP(&opts.Data, "data", "d", "", "request body sent as is")
	cmd.Flags().StringVar(&opts.Type, "type", "json", "Content-Type of the body (json, text)")

	return cmd
}

func runStream(cmd *cobra.Command, opts *StreamOptions, url string) error {
	headers, err := parseKV("header", opts.Headers)
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

	s, err := sess.client.PostStream(ctx, url, headers, opts.Data, ct)
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	if s.IsError() {
		// An error stream repeats its diagnostic forever.
		chunk, _ := s.Next()
		fmt.Fprintln(out, chunk.Body)
		return &StatusError{StatusCode: s.StatusCode()}
	}

	for chunk, ok := s.Next(); ok; chunk, ok = s.Next() {
		fmt.Fprint(out, chunk.Body)
	}
	fmt.Fprintln(out)
	return nil
}
