package proto

// MessageHandler consumes completed messages. A non-nil error marks
// the stream corrupted: the reassembler stops processing the current
// chunk and propagates the error to the delivery caller.
type MessageHandler interface {
	HandleMessage(*Message) error
}

// HandleMessageFunc is the func form of MessageHandler.
type HandleMessageFunc func(*Message) error

// HandleMessage implements MessageHandler.
func (f HandleMessageFunc) HandleMessage(msg *Message) error {
	return f(msg)
}

type rxState int

const (
	awaitType      rxState = iota // waiting for the 1-byte type tag
	awaitFixedArgs                // waiting for the fixed-size arguments
	awaitVarArgs                  // waiting for the variable trailing run
)

// Reassembler reconstructs complete messages from an arbitrarily
// chunked byte stream. Chunk boundaries never need to align with
// message boundaries: one Deliver call crosses as many phase
// transitions and completes as many messages as its input permits.
//
// The cursor and buffer are owned exclusively by the delivery path
// and need no locking. Handlers must not re-enter Deliver.
type Reassembler struct {
	// Dir selects which half of the catalog sizes the stream uses:
	// Incoming on the board, Outgoing on the host.
	Dir Direction
	// Handler receives each completed message.
	Handler MessageHandler

	state     rxState
	buf       [maxMessageBytes]byte
	cursor    int
	remaining int

	// analogFrame tracks the sample run length of analog status
	// reports, announced by the preceding format report. Host side
	// only.
	analogFrame int
}

// Reset returns the cursor to the await-type phase, expecting one
// byte, and forgets the tracked analog frame length. Call it before
// the first Deliver and whenever the link is reset.
func (r *Reassembler) Reset() {
	r.state = awaitType
	r.cursor = 0
	r.remaining = 1
	r.analogFrame = 0
}

// Deliver consumes one chunk of the stream, of any size. It drains
// the whole chunk unless a completed message is rejected, in which
// case the rest of the chunk is abandoned and the error returned;
// the cursor is already back at await-type and the caller owns
// recovery.
func (r *Reassembler) Deliver(data []byte) error {
	for len(data) > 0 {
		n := r.remaining
		if n > len(data) {
			n = len(data)
		}
		copy(r.buf[r.cursor:], data[:n])
		r.cursor += n
		r.remaining -= n
		data = data[n:]
		if r.remaining == 0 {
			if err := r.advance(); err != nil {
				return err
			}
		}
	}
	return nil
}

// advance crosses phase boundaries until more bytes are required or
// a message completes. A phase of size zero is crossed within the
// same call, so a message with no arguments completes the instant
// its tag arrives.
func (r *Reassembler) advance() error {
	for r.remaining == 0 {
		switch r.state {
		case awaitType:
			size, err := FixedArgSize(MessageType(r.buf[0]), r.Dir)
			if err != nil {
				r.Reset()
				return err
			}
			r.state, r.remaining = awaitFixedArgs, size
		case awaitFixedArgs:
			size := varArgSize(MessageType(r.buf[0]), r.Dir, r.buf[1:r.cursor])
			if size == varSizeTracked {
				size = r.analogFrame
			}
			if r.cursor+size > len(r.buf) {
				// announced run cannot belong to a valid message
				t := MessageType(r.buf[0])
				r.Reset()
				return &DecodeError{Type: t, Dir: r.Dir, Len: size}
			}
			r.state, r.remaining = awaitVarArgs, size
		case awaitVarArgs:
			return r.complete()
		}
	}
	return nil
}

// complete decodes the buffered message and hands it to the handler.
// The cursor is reset first, so the stream is back in a clean
// await-type state regardless of the dispatch outcome.
func (r *Reassembler) complete() error {
	t := MessageType(r.buf[0])
	size, _ := FixedArgSize(t, r.Dir)
	fixed := r.buf[1 : 1+size]
	trailing := r.buf[1+size : r.cursor]
	// the frame length survives the per-message cursor reset: it
	// pairs every status report after a format, not just the first
	frame := r.analogFrame
	r.Reset()
	r.analogFrame = frame
	msg, err := decodeMessage(t, r.Dir, fixed, trailing)
	if err != nil {
		return err
	}
	if f, ok := msg.Args.(*ReportAnalogInFormatArgs); ok {
		r.analogFrame = len(f.Pins)
	}
	if r.Handler == nil {
		return nil
	}
	return r.Handler.HandleMessage(msg)
}
