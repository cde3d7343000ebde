// Package sessions persists review sessions and runs every review operation
// against a Store rebuilt from storage.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MarcoPoloResearchLab/redline/internal/documents"
	"github.com/MarcoPoloResearchLab/redline/internal/generator"
	"github.com/MarcoPoloResearchLab/redline/internal/review"
	"github.com/MarcoPoloResearchLab/redline/internal/textdiff"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingIngestor = errors.New("ingestor is required")
	errMissingOwnerID  = errors.New("owner identifier is required")
	noOpLogger         = zap.NewNop()
)

type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew  = "sessions.service.new"
	opOpen        = "sessions.open"
	opGet         = "sessions.get"
	opList        = "sessions.list"
	opReplace     = "sessions.replace_suggestions"
	opTransition  = "sessions.transition"
	opAcceptAll   = "sessions.accept_all"
	opRejectAll   = "sessions.reject_all"
	opReconstruct = "sessions.reconstruct"
	opDiff        = "sessions.diff"
	opDiscard     = "sessions.discard"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// EventType names a session change announced to a Notifier.
type EventType string

const (
	EventDocumentOpened        EventType = "document_opened"
	EventSuggestionsReplaced   EventType = "suggestions_replaced"
	EventSuggestionsChanged    EventType = "suggestions_changed"
	EventDocumentReconstructed EventType = "document_reconstructed"
	EventDocumentDiscarded     EventType = "document_discarded"
)

// Notification describes a committed session change.
type Notification struct {
	OwnerID       OwnerID
	DocumentID    documents.DocumentID
	EventType     EventType
	SuggestionIDs []string
	Timestamp     time.Time
}

// Notifier receives notifications after each committed mutation.
type Notifier interface {
	Notify(notification Notification)
}

// Ingestor turns uploads into documents.
type Ingestor interface {
	Ingest(upload documents.Upload) (documents.Document, error)
}

type ServiceConfig struct {
	Database  *gorm.DB
	Clock     func() time.Time
	Ingestor  Ingestor
	Generator generator.Generator
	Logger    *zap.Logger
	Notifier  Notifier
}

type Service struct {
	db        *gorm.DB
	clock     func() time.Time
	ingestor  Ingestor
	generator generator.Generator
	logger    *zap.Logger
	notifier  Notifier
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.Ingestor == nil {
		return nil, newServiceError(opServiceNew, "missing_ingestor", errMissingIngestor)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	suggestionGenerator := cfg.Generator
	if suggestionGenerator == nil {
		suggestionGenerator = generator.Noop
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:        cfg.Database,
		clock:     clock,
		ingestor:  cfg.Ingestor,
		generator: suggestionGenerator,
		logger:    logger,
		notifier:  cfg.Notifier,
	}, nil
}

// Snapshot is the full state of one session.
type Snapshot struct {
	Document    documents.Document
	Suggestions []review.Suggestion
	Progress    review.Progress
	Overlaps    []review.Overlap
	Edited      string
	HasEdited   bool
	UpdatedAt   time.Time
}

// Summary describes a session in a listing.
type Summary struct {
	Document  documents.Document
	Progress  review.Progress
	UpdatedAt time.Time
}

// Reconstruction is the edited text together with the overlapping accepted
// suggestions that produced it.
type Reconstruction struct {
	Edited   string
	Overlaps []review.Overlap
}

// Diff is the word level comparison of the original and edited text.
// TooLarge marks a diff whose changed region was too far apart to align
// word by word.
type Diff struct {
	Segments []textdiff.Segment
	Summary  textdiff.Summary
	TooLarge bool
}

// Open ingests the upload, generates suggestions for it and persists the new
// session.
func (s *Service) Open(ctx context.Context, owner OwnerID, upload documents.Upload) (Snapshot, error) {
	if owner == "" {
		s.logError(opOpen, "missing_owner_id", errMissingOwnerID)
		return Snapshot{}, newServiceError(opOpen, "missing_owner_id", errMissingOwnerID)
	}

	document, err := s.ingestor.Ingest(upload)
	if err != nil {
		s.logError(opOpen, "ingest_failed", err,
			zap.String("owner_id", owner.String()),
			zap.String("name", upload.Name))
		return Snapshot{}, newServiceError(opOpen, "ingest_failed", err)
	}

	suggestions, err := s.generator.Generate(ctx, document)
	if err != nil {
		s.logError(opOpen, "generation_failed", err,
			zap.String("owner_id", owner.String()),
			zap.String("document_id", document.ID().String()))
		return Snapshot{}, newServiceError(opOpen, "generation_failed", err)
	}

	store := review.NewStore()
	if err := store.Load(document, suggestions); err != nil {
		s.logError(opOpen, "invalid_suggestions", err,
			zap.String("owner_id", owner.String()),
			zap.String("document_id", document.ID().String()))
		return Snapshot{}, newServiceError(opOpen, "invalid_suggestions", err)
	}

	now := s.clock().UTC()
	record := newDocumentRecord(owner, document, now)
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			s.logError(opOpen, "document_insert_failed", err,
				zap.String("owner_id", owner.String()),
				zap.String("document_id", document.ID().String()))
			return newServiceError(opOpen, "document_insert_failed", err)
		}
		if err := insertSuggestions(tx, owner, store.Suggestions()); err != nil {
			s.logError(opOpen, "suggestion_insert_failed", err,
				zap.String("owner_id", owner.String()),
				zap.String("document_id", document.ID().String()))
			return newServiceError(opOpen, "suggestion_insert_failed", err)
		}
		return nil
	})
	if txErr != nil {
		return Snapshot{}, txErr
	}

	s.logger.Info("document session opened",
		zap.String("owner_id", owner.String()),
		zap.String("document_id", document.ID().String()),
		zap.String("format", document.Format().String()),
		zap.String("size", documents.DescribeSize(document.SizeBytes())),
		zap.Int("suggestions", len(suggestions)))
	s.notify(owner, document.ID(), EventDocumentOpened, suggestionIDs(store.Suggestions()))
	return newSnapshot(record, store), nil
}

// Get returns the current session state.
func (s *Service) Get(ctx context.Context, owner OwnerID, documentID documents.DocumentID) (Snapshot, error) {
	record, store, err := s.loadSession(s.db.WithContext(ctx), opGet, owner, documentID, false)
	if err != nil {
		return Snapshot{}, err
	}
	return newSnapshot(record, store), nil
}

// List returns the owner's sessions, newest first.
func (s *Service) List(ctx context.Context, owner OwnerID) ([]Summary, error) {
	if owner == "" {
		s.logError(opList, "missing_owner_id", errMissingOwnerID)
		return nil, newServiceError(opList, "missing_owner_id", errMissingOwnerID)
	}

	db := s.db.WithContext(ctx)
	var records []DocumentRecord
	if err := db.Where("owner_id = ?", owner.String()).
		Order("created_at_s DESC").
		Order("document_id ASC").
		Find(&records).Error; err != nil {
		s.logError(opList, "query_failed", err, zap.String("owner_id", owner.String()))
		return nil, newServiceError(opList, "query_failed", err)
	}

	var suggestionRecords []SuggestionRecord
	if err := db.Select("document_id", "state").
		Where("owner_id = ?", owner.String()).
		Find(&suggestionRecords).Error; err != nil {
		s.logError(opList, "query_failed", err, zap.String("owner_id", owner.String()))
		return nil, newServiceError(opList, "query_failed", err)
	}
	progress := make(map[string]review.Progress, len(records))
	for _, suggestionRecord := range suggestionRecords {
		counts := progress[suggestionRecord.DocumentID]
		counts.Total++
		switch review.State(suggestionRecord.State) {
		case review.StateAccepted:
			counts.Accepted++
		case review.StateRejected:
			counts.Rejected++
		default:
			counts.Pending++
		}
		progress[suggestionRecord.DocumentID] = counts
	}

	summaries := make([]Summary, 0, len(records))
	for _, record := range records {
		document, err := record.document()
		if err != nil {
			s.logError(opList, "decode_failed", err,
				zap.String("owner_id", owner.String()),
				zap.String("document_id", record.DocumentID))
			return nil, newServiceError(opList, "decode_failed", err)
		}
		summaries = append(summaries, Summary{
			Document:  document,
			Progress:  progress[record.DocumentID],
			UpdatedAt: time.Unix(record.UpdatedAtSeconds, 0).UTC(),
		})
	}
	return summaries, nil
}

// ReplaceSuggestions swaps the session's suggestion set. An invalid batch
// leaves the session untouched and the returned error matches
// review.ErrValidation.
func (s *Service) ReplaceSuggestions(ctx context.Context, owner OwnerID, documentID documents.DocumentID, suggestions []review.Suggestion) (Snapshot, error) {
	var snapshot Snapshot
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, store, err := s.loadSession(tx, opReplace, owner, documentID, true)
		if err != nil {
			return err
		}
		if err := store.SetSuggestions(suggestions); err != nil {
			s.logError(opReplace, "invalid_suggestions", err,
				zap.String("owner_id", owner.String()),
				zap.String("document_id", documentID.String()))
			return newServiceError(opReplace, "invalid_suggestions", err)
		}

		if err := tx.Where("owner_id = ? AND document_id = ?", owner.String(), documentID.String()).
			Delete(&SuggestionRecord{}).Error; err != nil {
			s.logError(opReplace, "suggestion_delete_failed", err,
				zap.String("owner_id", owner.String()),
				zap.String("document_id", documentID.String()))
			return newServiceError(opReplace, "suggestion_delete_failed", err)
		}
		if err := insertSuggestions(tx, owner, store.Suggestions()); err != nil {
			s.logError(opReplace, "suggestion_insert_failed", err,
				zap.String("owner_id", owner.String()),
				zap.String("document_id", documentID.String()))
			return newServiceError(opReplace, "suggestion_insert_failed", err)
		}

		record.EditedText = ""
		record.HasEdited = false
		record.UpdatedAtSeconds = s.clock().UTC().Unix()
		if err := tx.Model(&DocumentRecord{}).
			Where("owner_id = ? AND document_id = ?", owner.String(), documentID.String()).
			Updates(map[string]any{
				"edited_text":  record.EditedText,
				"has_edited":   record.HasEdited,
				"updated_at_s": record.UpdatedAtSeconds,
			}).Error; err != nil {
			s.logError(opReplace, "document_update_failed", err,
				zap.String("owner_id", owner.String()),
				zap.String("document_id", documentID.String()))
			return newServiceError(opReplace, "document_update_failed", err)
		}

		snapshot = newSnapshot(record, store)
		return nil
	})
	if txErr != nil {
		return Snapshot{}, txErr
	}

	s.notify(owner, documentID, EventSuggestionsReplaced, suggestionIDs(snapshot.Suggestions))
	return snapshot, nil
}

// Transition applies an action to one suggestion. An unknown suggestion id
// is reported through TransitionResult.Found and is not an error.
func (s *Service) Transition(ctx context.Context, owner OwnerID, documentID documents.DocumentID, suggestionID string, action Action) (review.TransitionResult, error) {
	var result review.TransitionResult
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, store, err := s.loadSession(tx, opTransition, owner, documentID, true)
		if err != nil {
			return err
		}

		switch action {
		case ActionAccept:
			result = store.Accept(suggestionID)
		case ActionReject:
			result = store.Reject(suggestionID)
		case ActionUndo:
			result = store.Undo(suggestionID)
		default:
			err := fmt.Errorf("%w: %q", ErrInvalidAction, action)
			s.logError(opTransition, "invalid_action", err, zap.String("action", string(action)))
			return newServiceError(opTransition, "invalid_action", err)
		}
		if !result.Changed() {
			return nil
		}
		return s.saveStates(tx, opTransition, owner, documentID, result.Current, []string{result.ID})
	})
	if txErr != nil {
		return review.TransitionResult{}, txErr
	}

	if result.Changed() {
		s.notify(owner, documentID, EventSuggestionsChanged, []string{result.ID})
	}
	return result, nil
}

// AcceptAll accepts every pending suggestion and returns the affected ids.
func (s *Service) AcceptAll(ctx context.Context, owner OwnerID, documentID documents.DocumentID) ([]string, error) {
	return s.resolvePending(ctx, opAcceptAll, owner, documentID, review.StateAccepted)
}

// RejectAll rejects every pending suggestion and returns the affected ids.
func (s *Service) RejectAll(ctx context.Context, owner OwnerID, documentID documents.DocumentID) ([]string, error) {
	return s.resolvePending(ctx, opRejectAll, owner, documentID, review.StateRejected)
}

// Reconstruct applies the accepted suggestions, records the edited text on
// the session and reports overlapping accepted suggestions.
func (s *Service) Reconstruct(ctx context.Context, owner OwnerID, documentID documents.DocumentID) (Reconstruction, error) {
	var reconstruction Reconstruction
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, store, err := s.loadSession(tx, opReconstruct, owner, documentID, true)
		if err != nil {
			return err
		}
		edited, err := store.Reconstruct()
		if err != nil {
			s.logError(opReconstruct, "reconstruct_failed", err,
				zap.String("owner_id", owner.String()),
				zap.String("document_id", documentID.String()))
			return newServiceError(opReconstruct, "reconstruct_failed", err)
		}
		if err := tx.Model(&DocumentRecord{}).
			Where("owner_id = ? AND document_id = ?", owner.String(), documentID.String()).
			Updates(map[string]any{
				"edited_text":  edited,
				"has_edited":   true,
				"updated_at_s": s.clock().UTC().Unix(),
			}).Error; err != nil {
			s.logError(opReconstruct, "document_update_failed", err,
				zap.String("owner_id", owner.String()),
				zap.String("document_id", documentID.String()))
			return newServiceError(opReconstruct, "document_update_failed", err)
		}
		reconstruction = Reconstruction{Edited: edited, Overlaps: store.Overlaps()}
		return nil
	})
	if txErr != nil {
		return Reconstruction{}, txErr
	}

	if len(reconstruction.Overlaps) > 0 {
		s.logger.Warn("overlapping accepted suggestions",
			zap.String("owner_id", owner.String()),
			zap.String("document_id", documentID.String()),
			zap.Int("overlaps", len(reconstruction.Overlaps)))
	}
	s.notify(owner, documentID, EventDocumentReconstructed, nil)
	return reconstruction, nil
}

// Diff compares the original text with the reconstruction of the current
// accepted suggestions. It does not record the reconstruction.
func (s *Service) Diff(ctx context.Context, owner OwnerID, documentID documents.DocumentID) (Diff, error) {
	_, store, err := s.loadSession(s.db.WithContext(ctx), opDiff, owner, documentID, false)
	if err != nil {
		return Diff{}, err
	}
	document, _ := store.Original()
	edited, err := review.Reconstruct(document.Content(), store.Suggestions())
	if err != nil {
		s.logError(opDiff, "reconstruct_failed", err,
			zap.String("owner_id", owner.String()),
			zap.String("document_id", documentID.String()))
		return Diff{}, newServiceError(opDiff, "reconstruct_failed", err)
	}
	words, tooLarge := textdiff.WordsWithLimit(document.Content(), edited, textdiff.DefaultMaxEdits)
	segments := textdiff.Collect(words)
	if tooLarge {
		s.logger.Info("diff exceeded edit limit",
			zap.String("document_id", documentID.String()),
			zap.Int("max_edits", textdiff.DefaultMaxEdits))
	}
	return Diff{Segments: segments, Summary: textdiff.Summarize(slices.Values(segments)), TooLarge: tooLarge}, nil
}

// Discard deletes the session and everything derived from it.
func (s *Service) Discard(ctx context.Context, owner OwnerID, documentID documents.DocumentID) error {
	if owner == "" {
		s.logError(opDiscard, "missing_owner_id", errMissingOwnerID)
		return newServiceError(opDiscard, "missing_owner_id", errMissingOwnerID)
	}
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ? AND document_id = ?", owner.String(), documentID.String()).
			Delete(&SuggestionRecord{}).Error; err != nil {
			s.logError(opDiscard, "suggestion_delete_failed", err,
				zap.String("owner_id", owner.String()),
				zap.String("document_id", documentID.String()))
			return newServiceError(opDiscard, "suggestion_delete_failed", err)
		}
		deleted := tx.Where("owner_id = ? AND document_id = ?", owner.String(), documentID.String()).
			Delete(&DocumentRecord{})
		if deleted.Error != nil {
			s.logError(opDiscard, "document_delete_failed", deleted.Error,
				zap.String("owner_id", owner.String()),
				zap.String("document_id", documentID.String()))
			return newServiceError(opDiscard, "document_delete_failed", deleted.Error)
		}
		if deleted.RowsAffected == 0 {
			return newServiceError(opDiscard, "document_not_found", ErrDocumentNotFound)
		}
		return nil
	})
	if txErr != nil {
		return txErr
	}

	s.notify(owner, documentID, EventDocumentDiscarded, nil)
	return nil
}

func (s *Service) resolvePending(ctx context.Context, operation string, owner OwnerID, documentID documents.DocumentID, next review.State) ([]string, error) {
	var changed []string
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, store, err := s.loadSession(tx, operation, owner, documentID, true)
		if err != nil {
			return err
		}
		if next == review.StateAccepted {
			changed = store.AcceptAll()
		} else {
			changed = store.RejectAll()
		}
		if len(changed) == 0 {
			return nil
		}
		return s.saveStates(tx, operation, owner, documentID, next, changed)
	})
	if txErr != nil {
		return nil, txErr
	}

	if len(changed) > 0 {
		s.notify(owner, documentID, EventSuggestionsChanged, changed)
	}
	return changed, nil
}

func (s *Service) loadSession(db *gorm.DB, operation string, owner OwnerID, documentID documents.DocumentID, lock bool) (DocumentRecord, *review.Store, error) {
	if owner == "" {
		s.logError(operation, "missing_owner_id", errMissingOwnerID)
		return DocumentRecord{}, nil, newServiceError(operation, "missing_owner_id", errMissingOwnerID)
	}

	query := db
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var record DocumentRecord
	err := query.Where("owner_id = ? AND document_id = ?", owner.String(), documentID.String()).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DocumentRecord{}, nil, newServiceError(operation, "document_not_found", ErrDocumentNotFound)
	}
	if err != nil {
		s.logError(operation, "document_select_failed", err,
			zap.String("owner_id", owner.String()),
			zap.String("document_id", documentID.String()))
		return DocumentRecord{}, nil, newServiceError(operation, "document_select_failed", err)
	}

	var suggestionRecords []SuggestionRecord
	if err := db.Where("owner_id = ? AND document_id = ?", owner.String(), documentID.String()).
		Order("ordinal ASC").
		Find(&suggestionRecords).Error; err != nil {
		s.logError(operation, "suggestion_select_failed", err,
			zap.String("owner_id", owner.String()),
			zap.String("document_id", documentID.String()))
		return DocumentRecord{}, nil, newServiceError(operation, "suggestion_select_failed", err)
	}

	document, err := record.document()
	if err != nil {
		s.logError(operation, "decode_failed", err,
			zap.String("owner_id", owner.String()),
			zap.String("document_id", documentID.String()))
		return DocumentRecord{}, nil, newServiceError(operation, "decode_failed", err)
	}
	suggestions := make([]review.Suggestion, 0, len(suggestionRecords))
	for _, suggestionRecord := range suggestionRecords {
		suggestions = append(suggestions, suggestionRecord.suggestion())
	}
	store := review.NewStore()
	if err := store.Load(document, suggestions); err != nil {
		s.logError(operation, "decode_failed", err,
			zap.String("owner_id", owner.String()),
			zap.String("document_id", documentID.String()))
		return DocumentRecord{}, nil, newServiceError(operation, "decode_failed", err)
	}
	if record.HasEdited {
		if err := store.SetEdited(record.EditedText); err != nil {
			return DocumentRecord{}, nil, newServiceError(operation, "decode_failed", err)
		}
	}
	return record, store, nil
}

func (s *Service) saveStates(tx *gorm.DB, operation string, owner OwnerID, documentID documents.DocumentID, state review.State, ids []string) error {
	if err := tx.Model(&SuggestionRecord{}).
		Where("owner_id = ? AND document_id = ? AND suggestion_id IN ?", owner.String(), documentID.String(), ids).
		Update("state", string(state)).Error; err != nil {
		s.logError(operation, "state_update_failed", err,
			zap.String("owner_id", owner.String()),
			zap.String("document_id", documentID.String()))
		return newServiceError(operation, "state_update_failed", err)
	}
	if err := tx.Model(&DocumentRecord{}).
		Where("owner_id = ? AND document_id = ?", owner.String(), documentID.String()).
		Update("updated_at_s", s.clock().UTC().Unix()).Error; err != nil {
		s.logError(operation, "document_update_failed", err,
			zap.String("owner_id", owner.String()),
			zap.String("document_id", documentID.String()))
		return newServiceError(operation, "document_update_failed", err)
	}
	return nil
}

func insertSuggestions(tx *gorm.DB, owner OwnerID, suggestions []review.Suggestion) error {
	if len(suggestions) == 0 {
		return nil
	}
	records := newSuggestionRecords(owner, suggestions)
	return tx.Create(&records).Error
}

func newSnapshot(record DocumentRecord, store *review.Store) Snapshot {
	document, _ := store.Original()
	edited, hasEdited := store.Edited()
	return Snapshot{
		Document:    document,
		Suggestions: store.Suggestions(),
		Progress:    store.Progress(),
		Overlaps:    store.Overlaps(),
		Edited:      edited,
		HasEdited:   hasEdited,
		UpdatedAt:   time.Unix(record.UpdatedAtSeconds, 0).UTC(),
	}
}

func suggestionIDs(suggestions []review.Suggestion) []string {
	if len(suggestions) == 0 {
		return nil
	}
	ids := make([]string, 0, len(suggestions))
	for _, suggestion := range suggestions {
		ids = append(ids, suggestion.ID)
	}
	return ids
}

func (s *Service) notify(owner OwnerID, documentID documents.DocumentID, eventType EventType, ids []string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(Notification{
		OwnerID:       owner,
		DocumentID:    documentID,
		EventType:     eventType,
		SuggestionIDs: ids,
		Timestamp:     s.clock().UTC(),
	})
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("sessions service error", attrs...)
}
