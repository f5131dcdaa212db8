// Package runtime wires storage, sources, the bookmark store, metrics and
// the subscription registry into a single flowatch process.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
//	// Append to the bundled log
//	l, _ := rt.OpenLog("orders")
//	_, _ = l.Append(ctx, []eventlog.AppendRecord{{Payload: []byte("hello")}})
//	// Watch it, resuming from the stored position
//	sub, _ := rt.Watch(ctx, runtime.WatchRequest{Identifier: "orders", Actions: actions})
//	_ = sub
package runtime
