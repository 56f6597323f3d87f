// Package checkpoint persists one JSON record per pack so later runs can skip
// packs that were already processed.
//
// Each pack owns a directory named after its sanitized title:
//
//	<root>/<sanitized title>/info.json
//
// A record that exists and decodes is authoritative. A record that fails to
// decode is treated as missing and the pack is processed again. Records are
// written through a temporary file and renamed into place, so a crash never
// leaves a truncated info.json behind.
package checkpoint
