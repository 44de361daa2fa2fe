package transport

import "errors"

// Construction errors
var (
	ErrNilPacketReceived  = errors.New("packet received callback is required")
	ErrNilSegmentSend     = errors.New("segment send callback is required")
	ErrInvalidSegmentSize = errors.New("segment size must be at least 1")
)

// Reassembly diagnostics. None of these change what the reassembler delivers;
// they only make dropped segments and sequence violations observable.
var (
	ErrMalformedSegment         = errors.New("malformed segment")
	ErrOrphanContinuation       = errors.New("continuation segment without a preceding first segment")
	ErrOrphanLast               = errors.New("last segment without a preceding first segment")
	ErrReassemblyRestarted      = errors.New("first segment discarded an unfinished reassembly")
	ErrCompleteDuringReassembly = errors.New("complete segment arrived during a reassembly")
)

// Link errors
var (
	ErrLinkClosed  = errors.New("link closed")
	ErrNoPeer      = errors.New("link has no peer address")
	ErrSegmentSize = errors.New("segment exceeds link MTU")
)
