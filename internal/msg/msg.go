package msg

// Inbound represents one message received from a channel. It is immutable
// once produced by an adapter.
type Inbound struct {
	Seq         int64        // channel-local sequence number, monotonically increasing
	Sender      string       // channel-qualified sender identity
	Text        string       // raw text, may be empty for attachment-only messages
	Attachments []Attachment // ordered as delivered by the channel
	FromSelf    bool         // true when the message was sent by the operator's own account
}

// Attachment describes one file attached to an inbound message.
type Attachment struct {
	Path string // source path or downloaded local path
	MIME string // declared MIME type
	Name string // declared file name
	Size int64  // declared size in bytes
}
