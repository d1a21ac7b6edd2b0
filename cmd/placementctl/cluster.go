package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func clusterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Cluster membership operations",
	}
	cmd.AddCommand(clusterNodesCmd())
	return cmd
}

func clusterNodesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nodes",
		Short: "List all cluster nodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			var nodes []struct {
				ID       string `json:"id"`
				Address  string `json:"address"`
				IsLeader bool   `json:"is_leader"`
				State    string `json:"state"`
				LastSeen int64  `json:"last_seen"`
			}
			if err := doJSON(http.MethodGet, "/v1/cluster/nodes", nil, &nodes); err != nil {
				return err
			}
			for i, n := range nodes {
				leader := ""
				if n.IsLeader {
					leader = " (leader)"
				}
				fmt.Printf("%d) %s - %s - %s%s\n", i+1, n.ID, n.Address, n.State, leader)
			}
			return nil
		},
	}
}
