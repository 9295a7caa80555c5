package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"noderig/internal/message"
)

type injectMessageOptions struct {
	url             string
	process         string
	node            string
	expectsResponse uint64
	blob            string
}

func newInjectMessageCmd() *cobra.Command {
	opts := &injectMessageOptions{}

	cmd := &cobra.Command{
		Use:   "inject-message BODY",
		Short: "Send a message to a process on a running node",
		Long: `Send BODY to a process on a running node through its message endpoint
and print the response.

With --expects-response 0 the message is sent fire-and-forget and only the
HTTP status is printed.`,
		Example: `  noderig inject-message --process vfs:distro:sys '{"path":"/tester:sys/pkg","action":"ReadDir"}'
  noderig inject-message --url http://localhost:8081 --process app:pkg:pub --blob ./payload.bin '{"Upload":null}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := message.Request{
				Process:      opts.process,
				Node:         opts.node,
				ResponseWait: time.Duration(opts.expectsResponse) * time.Second,
				Body:         args[0],
				BytesPath:    opts.blob,
			}

			resp, err := message.NewClient().Send(cmd.Context(), opts.url, req)
			if err != nil {
				return err
			}
			if resp != nil {
				fmt.Fprintln(cmd.OutOrStdout(), resp)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.url, "url", "u", message.NodeURL(8080), "Base URL of the node")
	cmd.Flags().StringVarP(&opts.process, "process", "p", "", "Target process, e.g. vfs:distro:sys")
	cmd.Flags().StringVarP(&opts.node, "node", "n", "", "Target node name (default: the node at --url)")
	cmd.Flags().Uint64VarP(&opts.expectsResponse, "expects-response", "e", 15, "Seconds the node waits for a response; 0 sends fire-and-forget")
	cmd.Flags().StringVarP(&opts.blob, "blob", "b", "", "File to attach as the binary payload")
	_ = cmd.MarkFlagRequired("process")

	return cmd
}
