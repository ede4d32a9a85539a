// Package io reads and writes task graph description files.
//
// # Formats
//
// Two encodings of the same structure are supported. JSON:
//
//	{
//	  "nodes": [
//	    {"id": "upload", "kernel": "memcpy_h2d"},
//	    {"id": "gemm", "kernel": "sgemm_128x64"},
//	    {"id": "log", "kind": "host"}
//	  ],
//	  "edges": [
//	    {"from": "upload", "to": "gemm"}
//	  ]
//	}
//
// and TOML:
//
//	[[nodes]]
//	id = "upload"
//	kernel = "memcpy_h2d"
//
//	[[nodes]]
//	id = "gemm"
//	kernel = "sgemm_128x64"
//
//	[[edges]]
//	from = "upload"
//	to = "gemm"
//
// # Node Fields
//
// Required:
//   - id: unique string identifier
//
// Optional:
//   - kind: "capture" (default) or "host"
//   - kernel: name of the GPU operation, stored as the "kernel" metadata key
//   - meta: freeform object
//
// # Work
//
// A description file carries structure only. Imported nodes have no
// [dag.WorkFunc]; callers bind one per node before optimizing, for example
// with [BindWork].
//
// # Import
//
// [ImportFile] picks the decoder from the file extension (.json or .toml).
// [ReadJSON] and [ReadTOML] read from any io.Reader. All readers validate the
// result: duplicate IDs, unknown edge endpoints, and cycles are rejected.
package io
