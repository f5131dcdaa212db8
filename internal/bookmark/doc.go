// Package bookmark persists position tokens: the durable record of how far a
// watcher has consumed a source.
//
// A token carries a Kind (source type plus query scope), the sequence of the
// last consumed record and opaque source position bytes. Stores save and load
// tokens by location. Locations beginning with "./", ".\", "../" or "..\" (or
// exactly "." / "..") resolve against the store's working directory; every
// other location must be absolute.
//
//	store := bookmark.NewFileStore(bookmark.WithWorkDir(cwd))
//	_ = store.Save(ctx, tok, "./orders.bookmark")
//	tok, found, err := store.Load(ctx, "./orders.bookmark", bookmark.Kind{Type: "eventlog", Scope: q.Fingerprint()})
//
// Token files start with the magic "FWBM" and a version byte followed by a
// protobuf google.protobuf.Any. Loading a file that holds a different kind,
// or is not a token at all, fails with ErrTypeMismatch.
package bookmark
