package client

import (
	"github.com/spf13/cobra"

	"github.com/rzbill/flowatch/internal/runtime"
)

// OpenFunc opens the runtime a command operates on. The caller closes it.
type OpenFunc func(cmd *cobra.Command) (*runtime.Runtime, error)

// NewRoot constructs a root Cobra command carrying the log and bookmark
// command groups.
func NewRoot(open OpenFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "flowatch",
		Short: "flowatch client commands",
	}
	root.AddCommand(NewLogCommand(open))
	root.AddCommand(NewBookmarkCommand(open))
	return root
}

func withRuntime(cmd *cobra.Command, open OpenFunc, fn func(*runtime.Runtime) error) (err error) {
	rt, err := open(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(rt)
}
