// Package subscription binds a callback chain to a watcher and hands back the
// handle used to start, stop and close it.
//
//	w, _ := watcher.New(q, src, watcher.WithStart(tok))
//	sub, err := subscription.Bind(w, store, subscription.Spec{
//	    Location: "./orders.bookmark",
//	    Tag:      "orders",
//	    Actions:  []dispatch.Action{handle},
//	})
//	if err != nil { /* handle */ }
//	_ = sub.Start(ctx)
//	for err := range sub.Errors() { ... }
package subscription
