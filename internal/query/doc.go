// Package query defines what a watcher consumes: a source identifier, an
// addressing mode and a CEL filter over record fields.
//
// Filters see source (or path), sequence, ts_ms, machine, id, size, text,
// json, headers and now_ms. The filter "*" matches everything.
package query
