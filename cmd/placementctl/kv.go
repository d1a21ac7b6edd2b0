package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func kvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kv",
		Short: "Key-value operations",
	}
	cmd.AddCommand(kvSetCmd())
	cmd.AddCommand(kvGetCmd())
	cmd.AddCommand(kvDelCmd())
	cmd.AddCommand(kvExistsCmd())
	cmd.AddCommand(kvIncrCmd())
	cmd.AddCommand(kvDecrCmd())
	cmd.AddCommand(kvTTLCmd())
	cmd.AddCommand(kvExpireCmd())
	cmd.AddCommand(kvKeysCmd())
	cmd.AddCommand(kvDelPatternCmd())
	cmd.AddCommand(kvMSetCmd())
	cmd.AddCommand(kvMGetCmd())
	return cmd
}

func kvSetCmd() *cobra.Command {
	var ttl int

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a key-value pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := struct {
				Value     string `json:"value"`
				TTLSecond int    `json:"ttl_seconds"`
			}{Value: args[1], TTLSecond: ttl}
			if err := doJSON(http.MethodPut, "/v1/kv/"+url.PathEscape(args[0]), req, nil); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		},
	}
	cmd.Flags().IntVar(&ttl, "ttl", 0, "Time to live in seconds")
	return cmd
}

func kvGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a value by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Key   string `json:"key"`
				Value string `json:"value"`
			}
			if err := doJSON(http.MethodGet, "/v1/kv/"+url.PathEscape(args[0]), nil, &resp); err != nil {
				return err
			}
			fmt.Println(resp.Value)
			return nil
		},
	}
}

func kvDelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "del <key>",
		Short: "Delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := doJSON(http.MethodDelete, "/v1/kv/"+url.PathEscape(args[0]), nil, nil); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		},
	}
}

func kvExistsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exists <key>",
		Short: "Check whether a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exists, err := headExists("/v1/kv/" + url.PathEscape(args[0]))
			if err != nil {
				return err
			}
			fmt.Println(exists)
			return nil
		},
	}
}

func kvIncrCmd() *cobra.Command {
	var delta int64
	cmd := &cobra.Command{
		Use:   "incr <key>",
		Short: "Increment a counter key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Value int64 `json:"value"`
			}
			req := struct {
				Delta int64 `json:"delta"`
			}{Delta: delta}
			if err := doJSON(http.MethodPost, "/v1/kv/"+url.PathEscape(args[0])+"/incr", req, &resp); err != nil {
				return err
			}
			fmt.Println(resp.Value)
			return nil
		},
	}
	cmd.Flags().Int64Var(&delta, "by", 1, "Amount to increment by")
	return cmd
}

func kvDecrCmd() *cobra.Command {
	var delta int64
	cmd := &cobra.Command{
		Use:   "decr <key>",
		Short: "Decrement a counter key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Value int64 `json:"value"`
			}
			req := struct {
				Delta int64 `json:"delta"`
			}{Delta: delta}
			if err := doJSON(http.MethodPost, "/v1/kv/"+url.PathEscape(args[0])+"/decr", req, &resp); err != nil {
				return err
			}
			fmt.Println(resp.Value)
			return nil
		},
	}
	cmd.Flags().Int64Var(&delta, "by", 1, "Amount to decrement by")
	return cmd
}

func kvTTLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ttl <key>",
		Short: "Show remaining time to live for a key, in seconds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				TTLSeconds int64 `json:"ttl_seconds"`
			}
			if err := doJSON(http.MethodGet, "/v1/kv/"+url.PathEscape(args[0])+"/ttl", nil, &resp); err != nil {
				return err
			}
			fmt.Println(resp.TTLSeconds)
			return nil
		},
	}
}

func kvExpireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire <key> <ttl-seconds>",
		Short: "Set a key's time to live",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid ttl-seconds %q: %w", args[1], err)
			}
			req := struct {
				TTLSeconds int `json:"ttl_seconds"`
			}{TTLSeconds: ttl}
			if err := doJSON(http.MethodPost, "/v1/kv/"+url.PathEscape(args[0])+"/expire", req, nil); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		},
	}
}

func kvKeysCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "keys <pattern>",
		Short: "List keys matching a pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Keys []string `json:"keys"`
			}
			path := "/v1/kv:keys?pattern=" + url.QueryEscape(args[0]) + "&limit=" + strconv.Itoa(limit)
			if err := doJSON(http.MethodGet, path, nil, &resp); err != nil {
				return err
			}
			for _, k := range resp.Keys {
				fmt.Println(k)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of keys to return")
	return cmd
}

func kvDelPatternCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "del-pattern <pattern>",
		Short: "Delete every key matching a pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Deleted int `json:"deleted"`
			}
			path := "/v1/kv:keys?pattern=" + url.QueryEscape(args[0]) + "&limit=" + strconv.Itoa(limit)
			if err := doJSON(http.MethodDelete, path, nil, &resp); err != nil {
				return err
			}
			fmt.Printf("deleted %d key(s)\n", resp.Deleted)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of keys to delete")
	return cmd
}

func kvMSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mset <key>=<value> [<key>=<value> ...]",
		Short: "Set multiple key-value pairs in one call",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values := make(map[string]string, len(args))
			for _, arg := range args {
				k, v, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("invalid pair %q, expected key=value", arg)
				}
				values[k] = v
			}
			req := struct {
				Op     string            `json:"op"`
				Values map[string]string `json:"values"`
			}{Op: "mset", Values: values}
			if err := doJSON(http.MethodPost, "/v1/kv:batch", req, nil); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		},
	}
}

func kvMGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mget <key> [<key> ...]",
		Short: "Get multiple keys in one call",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := struct {
				Op   string   `json:"op"`
				Keys []string `json:"keys"`
			}{Op: "mget", Keys: args}
			var resp struct {
				Values map[string]string `json:"values"`
			}
			if err := doJSON(http.MethodPost, "/v1/kv:batch", req, &resp); err != nil {
				return err
			}
			for _, k := range args {
				if v, ok := resp.Values[k]; ok {
					fmt.Printf("%s=%s\n", k, v)
				}
			}
			return nil
		},
	}
}
