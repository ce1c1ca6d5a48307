// Package core provides the drop zone classification engine.
//
// This package contains all domain logic independent of any UI or transport
// layer. The CLI, the HTTP API and the menu all go through [Service].
//
// # Architecture
//
// A run moves every file in {root}/drop_zone/incoming to exactly one place:
//
//   - Prober: reads a bounded row prefix (default 50 rows) from .csv, .xlsx
//     and .xls files. It never decides which row is the header.
//   - Matcher: filters the schema catalog by filename glob, then looks for a
//     row containing every required column of each candidate.
//   - Router: computes destinations. Pure, no I/O.
//   - Relocator: moves the file and produces its [Record].
//   - Orchestrator: drives the above over the sorted incoming listing and
//     writes one CSV classification log per run.
//
// # Destinations
//
//	matched       {root}/raw/{source_system}/{dataset_name}/load_date=YYYY-MM-DD/{file}
//	unclassified  {root}/drop_zone/unclassified/{file}
//	rejected      {root}/drop_zone/rejected/{file}
//
// # Matching
//
// Among candidates whose header row was found, the schema with the most
// required columns wins. Ties go to the lower header row index, then to the
// earlier schema in catalog (filename) order.
//
// # Error Handling
//
// A file that cannot be probed or moved is rejected, with the error text as
// the reason. Errors are mapped to support codes using [MapError]:
//
//   - SCH001-SCH002: Schema catalog errors (abort the run)
//   - FILE001-FILE006: Probe errors (missing, format, encoding, timeout)
//   - MOVE001-MOVE004: Relocation errors
//   - RUN001-RUN004: Run and requeue errors
//
// # Concurrency
//
// Runs are serialized by [RunLimiter]. Within a run, Options.Workers > 1
// classifies files in parallel; records are collected by one goroutine and
// kept in input order, so the log matches a sequential run.
package core
