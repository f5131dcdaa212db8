package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rzbill/flowatch/internal/eventlog"
	"github.com/rzbill/flowatch/internal/runtime"
)

// NewLogCommand constructs the `log` command group for the bundled event log.
func NewLogCommand(open OpenFunc) *cobra.Command {
	logCmd := &cobra.Command{Use: "log", Short: "Bundled event log operations"}
	logCmd.AddCommand(
		newLogAppendCommand(open),
		newLogReadCommand(open),
		newLogSourcesCommand(open),
	)
	return logCmd
}

// newLogAppendCommand constructs the `log append` subcommand.
func newLogAppendCommand(open OpenFunc) *cobra.Command {
	appendCmd := &cobra.Command{
		Use:   "append",
		Short: "Append records to a source",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("source")
			data, _ := cmd.Flags().GetStringArray("data")
			rawHeaders, _ := cmd.Flags().GetStringArray("header")
			headersJSON, _ := cmd.Flags().GetString("header-json")
			if len(data) == 0 {
				return fmt.Errorf("at least one --data is required")
			}
			headers, err := parseHeaders(rawHeaders, headersJSON)
			if err != nil {
				return err
			}

			return withRuntime(cmd, open, func(rt *runtime.Runtime) error {
				l, err := rt.OpenLog(name)
				if err != nil {
					return err
				}
				recs := make([]eventlog.AppendRecord, len(data))
				for i, d := range data {
					recs[i] = eventlog.AppendRecord{Header: eventlog.Header{Fields: headers}, Payload: []byte(d)}
				}
				seqs, err := l.Append(cmd.Context(), recs)
				if err != nil {
					return err
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"source":    name,
					"sequences": seqs,
				})
			})
		},
	}
	appendCmd.Flags().String("source", "", "Source name")
	appendCmd.Flags().StringArray("data", nil, "Record payload (repeatable; one record each)")
	appendCmd.Flags().StringArray("header", nil, "Header key=value (repeatable)")
	appendCmd.Flags().String("header-json", "", "Headers as a JSON object")
	_ = appendCmd.MarkFlagRequired("source")
	return appendCmd
}

// newLogReadCommand constructs the `log read` subcommand.
func newLogReadCommand(open OpenFunc) *cobra.Command {
	readCmd := &cobra.Command{
		Use:   "read",
		Short: "Read records from a source",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("source")
			from, _ := cmd.Flags().GetUint64("from-seq")
			limit, _ := cmd.Flags().GetInt("limit")
			reverse, _ := cmd.Flags().GetBool("reverse")

			return withRuntime(cmd, open, func(rt *runtime.Runtime) error {
				l, err := rt.OpenLog(name)
				if err != nil {
					return err
				}
				opts := eventlog.ReadOptions{Limit: limit, Reverse: reverse}
				if from > 0 {
					opts.Start = eventlog.TokenFromSeq(from)
				}
				items, _, err := l.Read(opts)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				for _, it := range items {
					out := map[string]any{
						"source":   name,
						"sequence": it.Seq,
						"id":       it.Header.ID,
						"machine":  it.Header.Machine,
						"created":  time.UnixMilli(it.Header.TimestampMs).UTC().Format(time.RFC3339Nano),
					}
					if len(it.Header.Fields) > 0 {
						out["headers"] = it.Header.Fields
					}
					if err := enc.Encode(decodedPayload(out, it.Payload)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	readCmd.Flags().String("source", "", "Source name")
	readCmd.Flags().Uint64("from-seq", 0, "First sequence to read (0 = beginning, or end with --reverse)")
	readCmd.Flags().Int("limit", 100, "Maximum records to print")
	readCmd.Flags().Bool("reverse", false, "Read newest first")
	_ = readCmd.MarkFlagRequired("source")
	return readCmd
}

// newLogSourcesCommand constructs the `log sources` subcommand.
func newLogSourcesCommand(open OpenFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List sources in the bundled log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, open, func(rt *runtime.Runtime) error {
				names, err := rt.Catalog().Sources()
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(cmd.OutOrStdout(), n)
				}
				return nil
			})
		},
	}
}
