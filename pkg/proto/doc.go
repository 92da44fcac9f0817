// Package proto implements the application-layer protocol between a
// host and an I/O board over a byte-oriented channel.
package proto

// The protocol exchanges discrete typed binary messages over a
// transport that delivers bytes in order but in arbitrary chunk
// sizes. Each message is a 1-byte type tag followed by fixed-size
// arguments defined per type and direction by the catalog, plus an
// optional variable-length byte run. There are no delimiters or
// checksums: framing relies entirely on catalog-driven length
// tracking, so a corrupted stream is recovered only by resetting the
// link.
//
// The engine is single-threaded on the receive path (reassembler and
// dispatcher) and multi-producer on the transmit path: any call site
// may enqueue outgoing messages while the transmission pump drains
// the queue into the channel.
//
// Producer: host software
// Consumer: I/O board firmware (or the emulator in pkg/board)
