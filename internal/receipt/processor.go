package receipt

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/zombor/receipt-pipeline/internal/notion"
	"github.com/zombor/receipt-pipeline/internal/scanning"
)

var (
	// ErrEmptyBatch is returned when a batch has no items
	ErrEmptyBatch = errors.New("at least one receipt is required")

	// ErrMissingCredentials is returned when the Notion key or database id is blank
	ErrMissingCredentials = notion.ErrMissingCredentials
)

const noTextMessage = "Could not extract any text from the image"

// Persister stores a structured receipt and returns the id of the stored record
type Persister interface {
	Save(ctx context.Context, record *scanning.ReceiptData, creds notion.Credentials) (string, error)
}

// Processor drives each uploaded image through extraction, structuring and persistence
type Processor struct {
	scanner   scanning.Scanner
	persister Persister
}

// NewProcessor creates a new Processor
func NewProcessor(scanner scanning.Scanner, persister Persister) *Processor {
	return &Processor{
		scanner:   scanner,
		persister: persister,
	}
}

// ProcessBatch processes the items one at a time in order. A failing item is marked
// failed and the batch moves on. Only precondition violations are returned, and in
// that case nothing is published.
func (p *Processor) ProcessBatch(ctx context.Context, batch Batch, pub Publisher) error {
	if len(batch.Items) == 0 {
		return ErrEmptyBatch
	}
	if err := batch.Credentials.Validate(); err != nil {
		return ErrMissingCredentials
	}

	t := newTracker(batch, pub)
	t.publish()

	for i, item := range batch.Items {
		p.processItem(ctx, t, i, item, batch.Credentials)
	}

	pub.BatchDone(batch.ID, t.snapshot())
	slog.Info("Batch finished", "batch_id", batch.ID, "items", len(batch.Items))
	return nil
}

func (p *Processor) processItem(ctx context.Context, t *tracker, i int, item Upload, creds notion.Credentials) {
	t.advance(i, StageExtracting, LabelExtracting)
	text, err := p.scanner.ExtractText(ctx, item.Data, item.ContentType)
	if err == nil && strings.TrimSpace(text) == "" {
		err = &scanning.ExtractionError{Err: scanning.ErrNoText}
	}
	if err != nil {
		err = classifyExtraction(err)
		slog.Error("Failed to extract text",
			"batch_id", t.batchID,
			"item_id", t.states[i].ID,
			"filename", item.Filename,
			"content_type", item.ContentType,
			"file_size", len(item.Data),
			"error", err,
		)
		if errors.Is(err, scanning.ErrNoText) {
			t.fail(i, noTextMessage)
		} else {
			t.fail(i, "OCR failed: "+err.Error())
		}
		return
	}

	t.advance(i, StageStructuring, LabelStructuring)
	record, err := p.scanner.Structure(ctx, text)
	if err == nil && record == nil {
		err = &scanning.StructuringError{Err: errors.New("no receipt data returned")}
	}
	if err != nil {
		err = classifyStructuring(err)
		slog.Error("Failed to structure receipt", "batch_id", t.batchID, "item_id", t.states[i].ID, "error", err)
		t.fail(i, "Could not structure receipt data: "+err.Error())
		return
	}

	t.extracted(i, record)

	t.advance(i, StagePersisting, LabelPersisting)
	storedID, err := p.persister.Save(ctx, record, creds)
	if err != nil {
		persistErr := classifyPersistence(err)
		slog.Error("Failed to save receipt", "batch_id", t.batchID, "item_id", t.states[i].ID, "error", persistErr)
		t.fail(i, "Failed to save to Notion: "+persistErr.Error())
		return
	}

	t.succeed(i, storedID)
	slog.Info("Receipt saved", "batch_id", t.batchID, "item_id", t.states[i].ID, "stored_id", storedID)
}

func classifyExtraction(err error) error {
	var extractionErr *scanning.ExtractionError
	if errors.As(err, &extractionErr) {
		return err
	}
	return &scanning.ExtractionError{Err: err}
}

func classifyStructuring(err error) error {
	var structuringErr *scanning.StructuringError
	if errors.As(err, &structuringErr) {
		return err
	}
	return &scanning.StructuringError{Err: err}
}

func classifyPersistence(err error) *notion.PersistenceError {
	var persistErr *notion.PersistenceError
	if errors.As(err, &persistErr) {
		return persistErr
	}
	return &notion.PersistenceError{Err: err}
}

// tracker owns the per-item states of one batch and publishes a snapshot after every change.
// Only the processing goroutine touches it.
type tracker struct {
	batchID string
	states  []State
	pub     Publisher
}

func newTracker(batch Batch, pub Publisher) *tracker {
	return &tracker{batchID: batch.ID, states: initialStates(batch.Items), pub: pub}
}

func (t *tracker) snapshot() []State {
	out := make([]State, len(t.states))
	copy(out, t.states)
	return out
}

func (t *tracker) publish() {
	t.pub.StateChanged(t.batchID, t.snapshot())
}

// move applies a transition if it is legal and reports whether it did
func (t *tracker) move(i int, to Stage, label string) bool {
	from := t.states[i].Stage
	if !canTransition(from, to) {
		slog.Error("Refusing illegal state transition", "batch_id", t.batchID, "item_id", t.states[i].ID, "from", from, "to", to)
		return false
	}
	t.states[i].Stage = to
	t.states[i].StatusLabel = label
	return true
}

func (t *tracker) advance(i int, to Stage, label string) {
	if t.move(i, to, label) {
		t.publish()
	}
}

func (t *tracker) extracted(i int, record *scanning.ReceiptData) {
	if t.move(i, StageExtracted, LabelExtracted) {
		t.states[i].Record = record
		t.publish()
	}
}

func (t *tracker) succeed(i int, storedID string) {
	if t.move(i, StageSuccess, LabelSaved) {
		t.states[i].Outcome = OutcomeSuccess
		t.states[i].StoredID = storedID
		t.publish()
	}
}

func (t *tracker) fail(i int, message string) {
	if t.move(i, StageFailed, message) {
		t.states[i].Outcome = OutcomeFailed
		t.states[i].Error = message
		t.publish()
	}
}
