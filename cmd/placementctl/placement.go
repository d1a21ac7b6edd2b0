package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func placementCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "placement",
		Short: "Placement engine operations",
	}
	cmd.AddCommand(placementLookupCmd())
	cmd.AddCommand(placementNodeCmd())
	cmd.AddCommand(placementSnapshotCmd())
	cmd.AddCommand(placementActivityCmd())
	return cmd
}

func placementLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <key>",
		Short: "Show which nodes currently own a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Key    string   `json:"key"`
				Owners []string `json:"owners"`
			}
			if err := doJSON(http.MethodGet, "/v1/placement/owners/"+url.PathEscape(args[0]), nil, &resp); err != nil {
				return err
			}
			for i, owner := range resp.Owners {
				fmt.Printf("%d) %s\n", i+1, owner)
			}
			return nil
		},
	}
}

func placementNodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "Join or remove a node from the placement engine's active set",
	}

	var address string
	join := &cobra.Command{
		Use:   "join <id>",
		Short: "Bring a node into the placement engine's active set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/v1/placement/nodes/" + url.PathEscape(args[0])
			if address != "" {
				path += "?address=" + url.QueryEscape(address)
			}
			if err := doJSON(http.MethodPost, path, nil, nil); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		},
	}
	join.Flags().StringVar(&address, "address", "", "Node's advertise address")

	leave := &cobra.Command{
		Use:   "leave <id>",
		Short: "Retire a node from the placement engine's active set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := doJSON(http.MethodDelete, "/v1/placement/nodes/"+url.PathEscape(args[0]), nil, nil); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		},
	}

	cmd.AddCommand(join, leave)
	return cmd
}

func placementActivityCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show this node's busiest bins and their current owners",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Bins []struct {
					Bin    uint32   `json:"bin"`
					Hits   uint64   `json:"hits"`
					Owners []string `json:"owners"`
				} `json:"bins"`
			}
			path := fmt.Sprintf("/v1/placement/activity?limit=%d", limit)
			if err := doJSON(http.MethodGet, path, nil, &resp); err != nil {
				return err
			}
			for _, b := range resp.Bins {
				fmt.Printf("bin %d: %d hits, owners=%v\n", b.Bin, b.Hits, b.Owners)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of bins to show")
	return cmd
}

func placementSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Dump or load the placement engine's bin table",
	}
	cmd.AddCommand(placementSnapshotDumpCmd())
	cmd.AddCommand(placementSnapshotLoadCmd())
	return cmd
}

func placementSnapshotDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <path>",
		Short: "Write the current bin table to a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverAddr+"/v1/placement/snapshot", nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 300 {
				return fmt.Errorf("server returned %s", resp.Status)
			}

			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			if _, err := f.ReadFrom(resp.Body); err != nil {
				return err
			}
			fmt.Printf("snapshot written to %s\n", args[0])
			return nil
		},
	}
}

func placementSnapshotLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <path>",
		Short: "Replace the current bin table with a local snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverAddr+"/v1/placement/snapshot", f)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 300 {
				return fmt.Errorf("server returned %s", resp.Status)
			}
			fmt.Println("OK")
			return nil
		},
	}
}
