package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type memberItem struct {
	Path     string `json:"path"`
	MTime    string `json:"mtime"`
	Selected bool   `json:"selected"`
	Kept     bool   `json:"kept"`
}

type groupItem struct {
	Index       int          `json:"index"`
	FullHash    string       `json:"full_hash"`
	Size        int64        `json:"size"`
	WastedBytes int64        `json:"wasted_bytes"`
	MemberCount int          `json:"member_count"`
	Members     []memberItem `json:"members"`
}

type groupsListResponse struct {
	Items  []groupItem `json:"items"`
	Total  int         `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

func newGroupsCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List duplicate groups from the last scan completed by a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGroupsList(limit, offset)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of groups to print")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of groups to skip")
	return cmd
}

func runGroupsList(limit, offset int) error {
	c := newAPIClient(serverAddr)
	var resp groupsListResponse
	if err := c.do("GET", fmt.Sprintf("/api/groups?limit=%d&offset=%d", limit, offset), nil, &resp); err != nil {
		return err
	}

	fmt.Printf("%d of %d groups\n\n", len(resp.Items), resp.Total)
	for _, g := range resp.Items {
		fmt.Printf("[%d] %s  size=%s  wasted=%s  members=%d\n",
			g.Index, g.FullHash[:min(16, len(g.FullHash))],
			humanize.Bytes(uint64(g.Size)), humanize.Bytes(uint64(g.WastedBytes)), g.MemberCount)
		for _, m := range g.Members {
			mark := " "
			switch {
			case m.Kept:
				mark = "K"
			case m.Selected:
				mark = "x"
			}
			fmt.Printf("    [%s] %s\n", mark, m.Path)
		}
	}
	return nil
}

func newStrategyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strategy <group-index> <strategy>",
		Short: "Apply a selection strategy to one group (keep_oldest, keep_newest, keep_shortest_path, keep_first_alphabetical, manual)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid group index %q: %w", args[0], err)
			}
			c := newAPIClient(serverAddr)
			var item groupItem
			if err := c.do("POST", fmt.Sprintf("/api/groups/%d/strategy", idx),
				map[string]string{"strategy": args[1]}, &item); err != nil {
				return err
			}
			fmt.Printf("group %d: %d members selected under %q\n", idx, selectedCount(item), args[1])
			return nil
		},
	}
}

func selectedCount(g groupItem) int {
	n := 0
	for _, m := range g.Members {
		if m.Selected {
			n++
		}
	}
	return n
}
