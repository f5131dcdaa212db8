// Package dispatch runs the per-record callback chain of a subscription.
//
// Every chain starts with a persistence step that saves the record's token to
// the subscription's location, followed by the user actions in the order
// given. The position is therefore saved before user processing: a crash in
// the middle of the actions loses their side effects for that record while
// the stored position has already moved past it (at-most-once processing).
//
// Action errors and panics become *CallbackError, failed saves become
// *PersistenceError. Both are reported through Config.Report and never stop
// the chain or the source.
package dispatch
