package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

type outcomeItem struct {
	Path   string `json:"path"`
	State  string `json:"state"`
	Dest   string `json:"dest,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type executeResponse struct {
	Outcomes []outcomeItem `json:"outcomes"`
}

func newExecuteCmd() *cobra.Command {
	var kind string
	var permanent bool
	var destDir string
	var groupIndexesRaw string

	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Execute an action (trash, move, or permanent delete) over the selected members of the last completed scan",
		RunE: func(cmd *cobra.Command, args []string) error {
			indexes, err := parseIndexList(groupIndexesRaw)
			if err != nil {
				return err
			}
			req := map[string]interface{}{
				"kind":      kind,
				"permanent": permanent,
			}
			if destDir != "" {
				req["dest_dir"] = destDir
			}
			if len(indexes) > 0 {
				req["group_indexes"] = indexes
			}

			c := newAPIClient(serverAddr)
			var resp executeResponse
			if err := c.do("POST", "/api/execute", req, &resp); err != nil {
				return err
			}
			printExecuteOutcomes(resp.Outcomes)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "trash", "action kind: trash, move, delete")
	cmd.Flags().BoolVar(&permanent, "permanent", false, "required alongside --kind=delete, else a delete request downgrades to trash")
	cmd.Flags().StringVar(&destDir, "dest-dir", "", "destination directory for --kind=move")
	cmd.Flags().StringVar(&groupIndexesRaw, "groups", "", "comma-separated group indexes to act on (default: every group with a selection)")
	return cmd
}

func parseIndexList(raw string) ([]int, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid --groups value %q: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func printExecuteOutcomes(outcomes []outcomeItem) {
	var done, skipped, failed int
	for _, o := range outcomes {
		switch o.State {
		case "done":
			done++
		case "skipped":
			skipped++
		case "failed":
			failed++
		}
		line := fmt.Sprintf("[%s] %s", o.State, o.Path)
		if o.Dest != "" {
			line += " -> " + o.Dest
		}
		if o.Reason != "" {
			line += " (" + o.Reason + ")"
		}
		fmt.Println(line)
	}
	fmt.Printf("\ndone=%d skipped=%d failed=%d total=%d\n", done, skipped, failed, len(outcomes))
}
