package client

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rzbill/flowatch/internal/bookmark"
	"github.com/rzbill/flowatch/internal/runtime"
)

// NewBookmarkCommand constructs the `bookmark` command group.
func NewBookmarkCommand(open OpenFunc) *cobra.Command {
	bmCmd := &cobra.Command{Use: "bookmark", Short: "Inspect and copy stored positions"}
	bmCmd.AddCommand(
		newBookmarkShowCommand(open),
		newBookmarkCopyCommand(open),
	)
	return bmCmd
}

// newBookmarkShowCommand constructs the `bookmark show` subcommand.
func newBookmarkShowCommand(open OpenFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "show <location>...",
		Short: "Print the tokens stored at one or more locations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, open, func(rt *runtime.Runtime) error {
				store := rt.Store()
				loaded, err := bookmark.LoadAll(cmd.Context(), store, make([]bookmark.Kind, len(args)), args)
				enc := json.NewEncoder(cmd.OutOrStdout())
				for i, l := range loaded {
					if batchFailed(err, i) {
						continue
					}
					out := map[string]any{"location": args[i], "found": l.Found}
					if resolved, rerr := store.Resolve(args[i]); rerr == nil {
						out["resolved"] = resolved
					}
					if l.Found {
						out["type"] = l.Token.Kind().Type
						out["scope"] = l.Token.Kind().Scope
						out["sequence"] = l.Token.Sequence()
						out["position_b64"] = base64.StdEncoding.EncodeToString(l.Token.Position())
					}
					if eerr := enc.Encode(out); eerr != nil {
						return eerr
					}
				}
				return err
			})
		},
	}
}

// newBookmarkCopyCommand constructs the `bookmark copy` subcommand.
func newBookmarkCopyCommand(open OpenFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "copy <src> <dst> [<src> <dst>...]",
		Short: "Re-save stored tokens at new locations",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || len(args)%2 != 0 {
				return fmt.Errorf("expected src/dst pairs, got %d arguments", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			srcs := make([]string, 0, len(args)/2)
			dsts := make([]string, 0, len(args)/2)
			for i := 0; i < len(args); i += 2 {
				srcs = append(srcs, args[i])
				dsts = append(dsts, args[i+1])
			}

			return withRuntime(cmd, open, func(rt *runtime.Runtime) error {
				loaded, err := bookmark.LoadAll(cmd.Context(), rt.Store(), make([]bookmark.Kind, len(srcs)), srcs)
				if err != nil {
					return err
				}
				tokens := make([]bookmark.Token, 0, len(loaded))
				targets := make([]string, 0, len(loaded))
				for i, l := range loaded {
					if !l.Found {
						return fmt.Errorf("no token stored at %s", srcs[i])
					}
					tokens = append(tokens, l.Token)
					targets = append(targets, dsts[i])
				}
				if err := bookmark.SaveAll(cmd.Context(), rt.Store(), tokens, targets); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "copied %d token(s)\n", len(tokens))
				return nil
			})
		},
	}
}

func batchFailed(err error, index int) bool {
	var be *bookmark.BatchError
	return errors.As(err, &be) && be.Failed(index)
}
