// Package rotation implements size-based log file rotation with bounded retention.
//
// A Controller owns one current file in a directory. Every Append writes first
// and then checks the resulting size; when it exceeds MaxFileSize the file is
// rotated:
//
//  1. the current file is closed and renamed to the next archive name
//  2. a fresh current file is opened at the canonical path
//  3. the oldest archives are deleted until at most MaxFiles files remain
//
// Archive names encode a strictly increasing sequence so sorting by sequence
// yields oldest-first order:
//
//	app-current.log       current file
//	app-000007.log        sequence naming
//	app-20251019T101500-000007.log  timestamp naming
//
// A rotation failure never fails the Append that triggered it. It is logged,
// reported to the observer, and retried on the next size check. Only the initial
// open in New is fatal.
//
// A Controller assumes it is the only writer of its directory; no cross-process
// locking is performed.
package rotation
