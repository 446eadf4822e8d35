// Package workflow defines the task graph the schedulers operate on.
//
// A Workflow is built once from task specifications and dependency edges and is
// immutable afterwards:
//   - Tasks keep their input order and are additionally given a deterministic
//     topological order (Kahn's algorithm, ready set ordered by input index).
//   - Predecessor/successor links are mutually consistent by construction.
//   - Per-predecessor transferred data is derived from input file names.
package workflow
