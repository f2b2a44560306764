// Package asdu owns IEC 60870-5-104 application data units.
//
// Ownership boundary:
// - header and information object decoding for monitoring type ids
// - command construction (interrogation, single, double)
// - quality descriptors and CP56Time2a timestamps
//
// Type ids without a known layout are skipped as a whole: the decoder cannot
// find object boundaries in an unrecognised body, so it yields no objects.
package asdu
