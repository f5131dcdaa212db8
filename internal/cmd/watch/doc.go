// Package watchrun exposes the Run entrypoint used by `flowatch watch`: it
// opens the runtime, optionally serves Prometheus metrics, starts a single
// subscription that prints each event as JSON and handles shutdown.
//
// Example:
//
//	opts := watchrun.Options{
//		Config:  config.Default(),
//		Request: runtime.WatchRequest{Identifier: "orders", Filter: `headers["region"] == "eu"`},
//		Limit:   10,
//	}
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//	_ = watchrun.Run(ctx, opts)
package watchrun
