// Package nfcb implements the ISO/IEC 14443-3 Type B (NFC-B) poll-frame
// demodulator: ASK edge detection, start-of-frame lock, symbol tracking,
// bit/byte framing, protocol classification, and ISO/IEC 13239 CRC-16
// validation.
//
// The decoder consumes real-valued baseband magnitude samples through a
// SignalSource and appends decoded NfcFrame values to a caller-provided
// slice. It owns no sample acquisition, no ring buffer, and no transport —
// those live in collaborator packages (sdrsource, sink, diag) outside this
// package. See SPEC_FULL.md for the full system this package is one part of.
package nfcb
