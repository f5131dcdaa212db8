// Package client provides the local `flowatch` commands that operate on the
// bundled event log and on stored bookmarks.
//
// Commands open the runtime through an OpenFunc supplied by the embedding
// binary, so they honour the same --config, --data-dir and FLOWATCH_*
// settings as `flowatch watch`. The runtime holds an exclusive lock on the
// data directory; run these while no watcher process uses it.
//
// Usage
//
//	flowatch log append --source orders \
//	    --data '{"id":1}' --data '{"id":2}' \
//	    --header region=eu
//
//	flowatch log read --source orders --from-seq 10 --limit 5
//	flowatch log read --source orders --reverse --limit 1
//	flowatch log sources
//
//	# Print stored positions (any type and scope)
//	flowatch bookmark show ./flowatch.bookmark /var/lib/app/orders.bookmark
//
//	# Re-save tokens at new locations (pairs of src dst)
//	flowatch bookmark copy ./a.bookmark ./b.bookmark
//
// Output is one JSON object per line. Payloads are rendered as payload_json,
// payload_text, or payload_b64 depending on content.
package client
