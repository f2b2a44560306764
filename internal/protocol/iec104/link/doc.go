// Package link runs the controlling side of an IEC 60870-5-104 connection.
//
// A Link owns the APCI state machine (STARTDT, TESTFR and STOPDT exchanges),
// the 15-bit send and receive sequence counters, and S-frame acknowledgement.
// It reads frames from a byte Transport and hands I-frame payloads back to
// the caller through Next.
package link
