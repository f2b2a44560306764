// Package outstation is a small IEC 60870-5-104 controlled station used by
// the simulator binary and by protocol tests.
//
// It answers STARTDT, TESTFR and STOPDT, replies to general interrogation
// with configured points or raw ASDUs, and mirrors single and double
// commands with a configurable cause. Every inbound frame is recorded.
package outstation
