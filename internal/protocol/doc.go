// Package protocol implements the line-oriented ping/RSSI exchange spoken by
// the unit firmware over a serial link.
package protocol

// The wire format has no framing beyond '\n', no checksums and no sequence
// numbers. Events are recognised purely by substring:
//
//	host   -> unit   ">>p:<hex id>:4\n"   ping the addressed peer
//	unit   -> host   "i'm a master"        master startup banner
//	unit   -> host   "<<0"                 acknowledgement preamble
//	unit   -> host   "rssi is <n>"         telemetry line
//
// Every read is bounded by attempt and blank-line counters rather than a
// deadline, so a silent or unplugged unit always yields "no data" in finite
// time. Nothing in this package returns an error for a protocol timeout.
