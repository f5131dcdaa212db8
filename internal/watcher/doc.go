// Package watcher implements the watcher lifecycle:
//
//	Created --Register--> Registered --Enable--> Watching
//	   |                   ^    |                  |
//	   |                   +----|---Disable--------+
//	   +-------------------+----+---Dispose------> Stopped
//
// Only the *Registration returned by Register can enable delivery, so the
// enable-before-bind ordering mistake cannot be written against this API.
// A zero Registration reports ErrNotRegistered.
//
// A watcher takes exactly one handler. Outside tests that handler is the
// callback chain installed by subscription.Bind, so every delivered record
// passes the position save before user actions run.
package watcher
