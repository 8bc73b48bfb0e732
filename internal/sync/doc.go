// Package sync implements the generic incremental sync driver.
//
// A Driver is parameterised by a Plugin that knows how to discover
// candidates for one entity type, fetch their details (a composite assembled
// from independently fetched categories), map the composite to its storage
// document and decide whether an existing record may be skipped.
//
// # Run
//
// Driver.Run discovers candidates, then processes them sequentially:
//
//   - existing records for which the plugin's skip policy holds are counted
//     as skipped and cost no upstream calls
//   - everything else is fetched, mapped, stamped per present category and
//     upserted, and classified as created or updated
//   - a failure for one candidate is counted as errored and never stops the
//     run
//
// Only a discovery failure (or cancellation) fails a run; it is returned as
// an *Error with StageDiscovery.
//
// # Progress
//
// Progress is reported as a percentage: 5 after discovery, 5+95*done/total
// after every batch and 100 at the end.
//
// The entities subpackage provides the plugins for every entity type and the
// policy subpackage the terminal-state skip rule they share.
package sync
