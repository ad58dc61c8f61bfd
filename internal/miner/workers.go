package miner

import (
	"bytes"
	"context"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/jhillyerd/enmime"

	"github.com/ankaboot-source/leadminer-engine/internal/extract"
	"github.com/ankaboot-source/leadminer-engine/internal/mailclient"
)

// ParseJob is one raw message handed to the worker pool, with the
// folder context the fetch loop knows and the pool does not.
type ParseJob struct {
	Msg    mailclient.RawMessage
	Folder string

	// IsLast marks the final message of its folder, so downstream
	// consumers can emit folder-completion events in order.
	IsLast bool
}

// ParsedMessage is the structured output of one parse job. Fields
// holds the raw address header values keyed by field name; BodyText
// is the decoded plain text, empty when parsing failed or body
// fetching is off.
type ParsedMessage struct {
	MessageID string
	SeqNum    uint32
	Folder    string
	IsLast    bool
	Fields    map[extract.Field]string
	Date      time.Time
	BodyText  string
}

// WorkerPool parses raw messages on a fixed set of workers so the
// fetch loop never blocks on CPU-bound MIME decoding.
type WorkerPool struct {
	size       int
	maxBodyLen int
	logger     *slog.Logger

	jobs    chan ParseJob
	results chan ParsedMessage
	wg      sync.WaitGroup
}

// DefaultWorkerCount sizes a pool to the available parallelism minus
// one, keeping a core free for the fetch loop. Never below one.
func DefaultWorkerCount() int {
	n := runtime.GOMAXPROCS(0) - 1
	if n < 1 {
		n = 1
	}
	return n
}

// NewWorkerPool creates a parse pool. A size below one falls back to
// DefaultWorkerCount.
func NewWorkerPool(size, maxBodyLen int, logger *slog.Logger) *WorkerPool {
	if size < 1 {
		size = DefaultWorkerCount()
	}
	return &WorkerPool{
		size:       size,
		maxBodyLen: maxBodyLen,
		logger:     logger,
		jobs:       make(chan ParseJob, size*2),
		results:    make(chan ParsedMessage, size*2),
	}
}

// Start launches the workers. The results channel closes once Close
// has been called and every in-flight job has drained.
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	go func() {
		p.wg.Wait()
		close(p.results)
	}()
}

// Submit queues one job, blocking while the pool is saturated.
func (p *WorkerPool) Submit(ctx context.Context, job ParseJob) error {
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results returns the channel of parsed messages.
func (p *WorkerPool) Results() <-chan ParsedMessage {
	return p.results
}

// Close signals that no more jobs will be submitted.
func (p *WorkerPool) Close() {
	close(p.jobs)
}

func (p *WorkerPool) worker(ctx context.Context) {
	defer p.wg.Done()
	for job := range p.jobs {
		result := p.parse(job)
		select {
		case p.results <- result:
		case <-ctx.Done():
			return
		}
	}
}

// parse turns raw bytes into a ParsedMessage. A malformed message
// degrades to envelope fields and empty text; the pool always emits
// exactly one result per job so folder completion tracking never
// stalls on a bad message.
func (p *WorkerPool) parse(job ParseJob) ParsedMessage {
	result := ParsedMessage{
		MessageID: job.Msg.MessageID,
		SeqNum:    job.Msg.SeqNum,
		Folder:    job.Folder,
		IsLast:    job.IsLast,
		Date:      job.Msg.Envelope.Date,
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(assembleRFC822(job.Msg.Header, job.Msg.Body)))
	if err != nil {
		p.logger.Debug("message parse failed",
			slog.String("folder", job.Folder),
			slog.Uint64("seq", uint64(job.Msg.SeqNum)),
			slog.String("error", err.Error()))
		result.Fields = fieldsFromEnvelope(job.Msg.Envelope)
		return result
	}

	result.Fields = map[extract.Field]string{
		extract.FieldFrom:    env.GetHeader("From"),
		extract.FieldTo:      env.GetHeader("To"),
		extract.FieldCc:      env.GetHeader("Cc"),
		extract.FieldBcc:     env.GetHeader("Bcc"),
		extract.FieldReplyTo: env.GetHeader("Reply-To"),
	}

	if date, err := extract.ParseMessageDate(env.GetHeader("Date")); err == nil {
		result.Date = date
	}

	// Plain text only. HTML conversion is skipped since only the
	// signature region matters downstream.
	text := env.Text
	if len(text) > p.maxBodyLen {
		text = text[:p.maxBodyLen]
	}
	result.BodyText = text

	return result
}

// assembleRFC822 joins a header block and body into one message,
// normalizing the blank-line separator the parser requires.
func assembleRFC822(header, body []byte) []byte {
	header = bytes.TrimRight(header, "\r\n")
	buf := make([]byte, 0, len(header)+4+len(body))
	buf = append(buf, header...)
	buf = append(buf, "\r\n\r\n"...)
	buf = append(buf, body...)
	return buf
}

// fieldsFromEnvelope rebuilds address header values from the
// server-parsed envelope, used when raw header parsing fails.
func fieldsFromEnvelope(env mailclient.Envelope) map[extract.Field]string {
	return map[extract.Field]string{
		extract.FieldFrom:    formatAddresses(env.From),
		extract.FieldTo:      formatAddresses(env.To),
		extract.FieldCc:      formatAddresses(env.Cc),
		extract.FieldBcc:     formatAddresses(env.Bcc),
		extract.FieldReplyTo: formatAddresses(env.ReplyTo),
	}
}

func formatAddresses(addrs []mailclient.Address) string {
	if len(addrs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a.Email == "" {
			continue
		}
		if a.Name != "" {
			parts = append(parts, a.Name+" <"+a.Email+">")
		} else {
			parts = append(parts, a.Email)
		}
	}
	return strings.Join(parts, ", ")
}
