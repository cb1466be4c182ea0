package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/zombor/receipt-pipeline/internal/notion"
)

// ErrBatchInFlight is returned when a batch is submitted while another is running
var ErrBatchInFlight = errors.New("a batch is already being processed")

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// IDGenerator generates unique batch IDs
type IDGenerator interface {
	Generate() string
}

// uuidGenerator generates random UUIDs
type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

// Service runs at most one batch at a time in the background and keeps a View of it
type Service struct {
	processor   *Processor
	storage     Storage
	view        *View
	publisher   Publisher
	defaults    notion.Credentials
	idGenerator IDGenerator

	mu       sync.Mutex
	inFlight bool
	previews []string
	wg       sync.WaitGroup
}

// NewService creates a new Service. Snapshots go to the service's View first, then to extra.
func NewService(processor *Processor, storage Storage, defaults notion.Credentials, extra ...Publisher) *Service {
	return NewServiceWithDeps(processor, storage, defaults, &uuidGenerator{}, extra...)
}

// NewServiceWithDeps creates a new Service with a custom ID generator for testing
func NewServiceWithDeps(processor *Processor, storage Storage, defaults notion.Credentials, idGen IDGenerator, extra ...Publisher) *Service {
	view := NewView()
	return &Service{
		processor:   processor,
		storage:     storage,
		view:        view,
		publisher:   append(Publishers{view}, extra...),
		defaults:    defaults,
		idGenerator: idGen,
	}
}

// View returns the live view of the current batch
func (s *Service) View() *View {
	return s.view
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = repeatedSpaces.ReplaceAllString(base, " ")
	base = strings.ReplaceAll(strings.TrimSpace(base), " ", "_")

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	if unsafeFilenameChars.MatchString(strings.TrimPrefix(ext, ".")) {
		ext = ""
	}
	return base + ext
}

// resolveCredentials fills blank fields from the configured defaults
func (s *Service) resolveCredentials(creds notion.Credentials) notion.Credentials {
	if strings.TrimSpace(creds.APIKey) == "" {
		creds.APIKey = s.defaults.APIKey
	}
	if strings.TrimSpace(creds.DatabaseID) == "" {
		creds.DatabaseID = s.defaults.DatabaseID
	}
	return creds
}

// StartBatch validates the submission, stores previews and processes the batch in the background.
// It returns the new batch id as soon as processing has been scheduled.
func (s *Service) StartBatch(ctx context.Context, uploads []Upload, creds notion.Credentials) (string, error) {
	if len(uploads) == 0 {
		return "", ErrEmptyBatch
	}
	creds = s.resolveCredentials(creds)
	if err := creds.Validate(); err != nil {
		return "", ErrMissingCredentials
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return "", ErrBatchInFlight
	}
	s.inFlight = true
	previous := s.previews
	s.previews = nil
	s.mu.Unlock()

	s.discardPreviews(previous)

	batch := Batch{
		ID:          s.idGenerator.Generate(),
		Items:       make([]Upload, len(uploads)),
		Credentials: creds,
	}
	previews := make([]string, 0, len(uploads))
	for i, upload := range uploads {
		name := fmt.Sprintf("%s_%03d_%s", batch.ID, i+1, sanitizeFilename(upload.Filename))
		saved, err := s.storage.Save(name, upload.Data)
		if err != nil {
			slog.Warn("Failed to save preview", "filename", upload.Filename, "error", err)
		} else {
			upload.PreviewHandle = saved
			previews = append(previews, saved)
		}
		batch.Items[i] = upload
	}

	s.mu.Lock()
	s.previews = previews
	s.mu.Unlock()

	s.view.Begin(batch.ID, initialStates(batch.Items))

	slog.Info("Starting batch", "batch_id", batch.ID, "items", len(batch.Items))

	// The batch outlives the request that submitted it
	runCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.inFlight = false
			s.mu.Unlock()
		}()
		if err := s.processor.ProcessBatch(runCtx, batch, s.publisher); err != nil {
			slog.Error("Batch rejected", "batch_id", batch.ID, "error", err)
		}
	}()

	return batch.ID, nil
}

// Wait blocks until the running batch, if any, has finished
func (s *Service) Wait() {
	s.wg.Wait()
}

// InFlight reports whether a batch is running
func (s *Service) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// GetPreview returns the stored preview image for a handle
func (s *Service) GetPreview(handle string) ([]byte, error) {
	data, err := s.storage.Get(handle)
	if err != nil {
		return nil, fmt.Errorf("getting preview: %w", err)
	}
	return data, nil
}

func (s *Service) discardPreviews(names []string) {
	for _, name := range names {
		if err := s.storage.Delete(name); err != nil {
			slog.Warn("Failed to delete preview", "filename", name, "error", err)
		}
	}
}
