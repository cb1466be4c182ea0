package receipt

import (
	"fmt"

	"github.com/zombor/receipt-pipeline/internal/notion"
	"github.com/zombor/receipt-pipeline/internal/scanning"
)

// Stage is the position of an item in the processing pipeline
type Stage string

const (
	StagePending     Stage = "pending"
	StageExtracting  Stage = "extracting"
	StageStructuring Stage = "structuring"
	StageExtracted   Stage = "extracted"
	StagePersisting  Stage = "persisting"
	StageSuccess     Stage = "success"
	StageFailed      Stage = "failed"
)

// Outcome is the persistence result of an item
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// Status labels shown to the user for each stage
const (
	LabelQueued      = "Queued"
	LabelExtracting  = "Processing OCR..."
	LabelStructuring = "Structuring data..."
	LabelExtracted   = "Data extracted"
	LabelPersisting  = "Saving to Notion..."
	LabelSaved       = "Saved successfully!"
)

// nextStage is the only forward transition allowed from each non-terminal stage
var nextStage = map[Stage]Stage{
	StagePending:     StageExtracting,
	StageExtracting:  StageStructuring,
	StageStructuring: StageExtracted,
	StageExtracted:   StagePersisting,
	StagePersisting:  StageSuccess,
}

// Terminal reports whether no further transitions can happen from s
func (s Stage) Terminal() bool {
	return s == StageSuccess || s == StageFailed
}

// canTransition reports whether an item may move from one stage to another
func canTransition(from, to Stage) bool {
	if from.Terminal() {
		return false
	}
	if to == StageFailed {
		return true
	}
	return nextStage[from] == to
}

// Upload is a single image submitted as part of a batch
type Upload struct {
	Filename      string `json:"filename"`
	ContentType   string `json:"content_type"`
	Data          []byte `json:"-"`
	PreviewHandle string `json:"preview_handle,omitempty"` // name of the saved preview file
}

// Batch is everything needed to run one processing pass
type Batch struct {
	ID          string
	Items       []Upload
	Credentials notion.Credentials
}

// State is the live status of one uploaded item
type State struct {
	ID            string                `json:"id"`
	Filename      string                `json:"filename"`
	PreviewHandle string                `json:"preview_handle,omitempty"`
	Stage         Stage                 `json:"stage"`
	StatusLabel   string                `json:"status_label"`
	Record        *scanning.ReceiptData `json:"record,omitempty"`
	Outcome       Outcome               `json:"outcome"`
	StoredID      string                `json:"stored_id,omitempty"`
	Error         string                `json:"error,omitempty"`
}

// initialStates creates one pending State per upload. IDs are the 1-based position in
// the batch, so duplicate files still get distinct ids.
func initialStates(items []Upload) []State {
	states := make([]State, len(items))
	for i, item := range items {
		states[i] = State{
			ID:            fmt.Sprintf("%03d", i+1),
			Filename:      item.Filename,
			PreviewHandle: item.PreviewHandle,
			Stage:         StagePending,
			StatusLabel:   LabelQueued,
			Outcome:       OutcomePending,
		}
	}
	return states
}
