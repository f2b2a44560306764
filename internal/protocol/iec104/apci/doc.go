// Package apci owns the IEC 60870-5-104 link-layer header.
//
// Ownership boundary:
// - I/S/U frame classification and construction
// - 15-bit send/receive sequence encoding
// - stream resynchronisation over fragmented reads
package apci
