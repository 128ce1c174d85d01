package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewFlowCmd создаёт группу команд для просмотра flows в журнале.
func NewFlowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Inspect recorded flows",
	}

	cmd.AddCommand(
		newFlowListCmd(clientFn, outputFn),
	)

	return cmd
}

func newFlowListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List flows present in the run journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flows, err := client.ListFlows()
			if err != nil {
				return err
			}

			headers := []string{"FLOW", "RUNS", "LAST_RUN"}
			rows := make([][]string, len(flows))
			for i, f := range flows {
				rows[i] = []string{f.Flow, strconv.Itoa(f.Runs), f.LastRunAt}
			}

			out.Print(headers, rows, flows)
			return nil
		},
	}
}
