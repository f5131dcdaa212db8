// Package source defines the event source collaborator a watcher consumes
// and the record type it delivers. Implementations live in the logsource,
// filesource and sourcetest subpackages.
package source
