package mailclient

import (
	"context"
	"time"
)

// Address is a parsed mailbox address from a message envelope.
type Address struct {
	Name  string
	Email string
}

// Envelope carries the structured header fields the server already
// parsed, used as a fallback when raw header parsing comes up empty.
type Envelope struct {
	Date      time.Time
	Subject   string
	MessageID string
	From      []Address
	To        []Address
	Cc        []Address
	Bcc       []Address
	ReplyTo   []Address
}

// RawMessage is one fetched message. Header always holds the full
// raw header block; Body holds at most the configured prefix of the
// text section and may be empty when body fetching is disabled.
type RawMessage struct {
	SeqNum    uint32
	UID       uint32
	MessageID string
	Envelope  Envelope
	Header    []byte
	Body      []byte
}

// FolderInfo describes one mailbox folder from a LIST response.
type FolderInfo struct {
	Name  string
	Delim string
	Attrs []string
	Total uint32
}

// Conn is a single authenticated mail session. Implementations are
// not safe for concurrent use; the pool hands each lease to exactly
// one goroutine.
type Conn interface {
	// ListFolders returns every folder in the account with its
	// message count.
	ListFolders(ctx context.Context) ([]FolderInfo, error)

	// SelectFolder opens a folder read-only and returns its message
	// count.
	SelectFolder(ctx context.Context, path string) (uint32, error)

	// FetchRange fetches messages with sequence numbers in
	// [start, end] from the selected folder.
	FetchRange(ctx context.Context, start, end uint32) ([]RawMessage, error)

	// Close logs out and releases the session.
	Close() error
}

// Dialer opens authenticated mail sessions.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}
