package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/shiva/swiftparcel/internal/model"
	"github.com/shiva/swiftparcel/internal/repository"
)

// ─── Errors ─────────────────────────────────────────────────

var (
	ErrDriverNotFound  = errors.New("driver not found")
	ErrUnknownDocument = errors.New("unknown document kind")
	ErrBadDecision     = errors.New("review decision must be 'verified' or 'rejected'")
)

// ─── Per-document classification ────────────────────────────

// ClassifyDocument folds the coexisting flag/status fields of a record
// into one tri-state answer. Rejection wins over verification: a record
// both flagged verified and rejected was re-reviewed and rejected.
func ClassifyDocument(rec model.DocumentRecord) model.DocumentStatus {
	if rec.Rejected || rec.Status == "rejected" || rec.VerificationStatus == "rejected" {
		return model.DocumentRejected
	}
	if rec.Verified || rec.Status == "verified" ||
		rec.VerificationStatus == "verified" || rec.VerificationStatus == "approved" {
		return model.DocumentVerified
	}
	return model.DocumentPending
}

// documentExists reports whether a record represents an actual upload:
// it has a URL or an explicit verification status.
func documentExists(rec model.DocumentRecord) bool {
	return rec.URL != "" || rec.Status != "" || rec.VerificationStatus != "" || rec.Verified || rec.Rejected
}

// ─── Status derivation ──────────────────────────────────────

// DocumentSnapshot is the per-driver verification view the engine derives.
type DocumentSnapshot struct {
	DriverID string                           `json:"driver_id"`
	Overall  model.VerificationStatus         `json:"overall"`
	PerKind  map[string]model.DocumentStatus  `json:"per_kind"`
	Missing  []string                         `json:"missing,omitempty"`
}

// DeriveStatus computes the overall verification status over the required
// kinds. previous preserves an admin-granted `approved` when the documents
// still all verify.
func DeriveStatus(docs map[string]model.DocumentRecord, previous model.VerificationStatus) (model.VerificationStatus, map[string]model.DocumentStatus, []string) {
	perKind := make(map[string]model.DocumentStatus, len(model.RequiredDocumentKinds))
	var missing []string
	uploaded, verified, rejected := 0, 0, 0

	for _, kind := range model.RequiredDocumentKinds {
		rec, ok := model.DocumentRecordFor(docs, kind)
		if !ok || !documentExists(rec) {
			missing = append(missing, kind)
			perKind[kind] = model.DocumentPending
			continue
		}
		uploaded++
		status := ClassifyDocument(rec)
		perKind[kind] = status
		switch status {
		case model.DocumentVerified:
			verified++
		case model.DocumentRejected:
			rejected++
		}
	}

	switch {
	case uploaded == 0:
		return model.VerificationNotUploaded, perKind, missing
	case rejected > 0:
		return model.VerificationRejected, perKind, missing
	case verified == len(model.RequiredDocumentKinds):
		if previous == model.VerificationApproved {
			return model.VerificationApproved, perKind, missing
		}
		return model.VerificationVerified, perKind, missing
	default:
		return model.VerificationPending, perKind, missing
	}
}

// ─── VerificationService ────────────────────────────────────

// VerificationService derives per-driver verification status from document
// state. It is the source of truth for dispatch eligibility.
//
// The snapshot cache is per-node and best-effort; every document write
// invalidates the affected driver, and correctness never depends on it.
type VerificationService struct {
	users    *repository.UserRepository
	messages *repository.MessageRepository
	events   Events
	cache    *gocache.Cache
}

// NewVerificationService creates the engine with a 5-minute snapshot cache.
// events may be nil and defaults to a no-op.
func NewVerificationService(users *repository.UserRepository, messages *repository.MessageRepository, events Events) *VerificationService {
	if events == nil {
		events = NopEvents{}
	}
	return &VerificationService{
		users:    users,
		messages: messages,
		events:   events,
		cache:    gocache.New(5*time.Minute, 10*time.Minute),
	}
}

// Snapshot returns the derived verification view for a driver, cached.
func (s *VerificationService) Snapshot(ctx context.Context, driverID string) (*DocumentSnapshot, error) {
	if cached, ok := s.cache.Get(driverID); ok {
		return cached.(*DocumentSnapshot), nil
	}

	driver, err := s.users.GetDriver(ctx, driverID)
	if err != nil {
		if errors.Is(err, repository.ErrDriverNotFound) {
			return nil, ErrDriverNotFound
		}
		return nil, err
	}

	overall, perKind, missing := DeriveStatus(driver.Driver.Documents, driver.Driver.VerificationStatus)
	snap := &DocumentSnapshot{
		DriverID: driverID,
		Overall:  overall,
		PerKind:  perKind,
		Missing:  missing,
	}
	s.cache.Set(driverID, snap, gocache.DefaultExpiration)
	return snap, nil
}

// Invalidate drops the cached snapshot for a driver. Failures here are
// impossible by construction (in-process map), but callers treat the whole
// operation as best-effort regardless.
func (s *VerificationService) Invalidate(driverID string) {
	s.cache.Delete(driverID)
}

// Recompute re-derives the driver's status from the stored documents and
// persists it: verification_status plus BOTH isVerified flags in one write,
// then cache invalidation.
func (s *VerificationService) Recompute(ctx context.Context, driverID string) (*DocumentSnapshot, error) {
	driver, err := s.users.GetDriver(ctx, driverID)
	if err != nil {
		if errors.Is(err, repository.ErrDriverNotFound) {
			return nil, ErrDriverNotFound
		}
		return nil, err
	}

	overall, perKind, missing := DeriveStatus(driver.Driver.Documents, driver.Driver.VerificationStatus)
	if err := s.users.SetVerification(ctx, driverID, overall, overall.IsEligible()); err != nil {
		return nil, fmt.Errorf("verification: persist %s: %w", driverID, err)
	}
	s.Invalidate(driverID)
	if overall != driver.Driver.VerificationStatus {
		s.events.DriverVerificationChanged(driverID, overall)
	}

	log.Printf("[verification] driver %s → %s (missing=%d)", driverID, overall, len(missing))
	return &DocumentSnapshot{DriverID: driverID, Overall: overall, PerKind: perKind, Missing: missing}, nil
}

// SubmitDocument records a driver's upload (URL from object storage) and
// recomputes. Writers standardize on snake_case keys.
func (s *VerificationService) SubmitDocument(ctx context.Context, driverID, kind, url string) (*DocumentSnapshot, error) {
	kind = model.CanonicalDocumentKind(kind)
	if !model.IsRequiredDocumentKind(kind) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDocument, kind)
	}

	driver, err := s.users.GetDriver(ctx, driverID)
	if err != nil {
		if errors.Is(err, repository.ErrDriverNotFound) {
			return nil, ErrDriverNotFound
		}
		return nil, err
	}

	docs := driver.Driver.Documents
	if docs == nil {
		docs = make(map[string]model.DocumentRecord)
	}
	// Rewrite under the canonical key; drop a legacy-keyed duplicate.
	for legacyKind := range docs {
		if legacyKind != kind && model.CanonicalDocumentKind(legacyKind) == kind {
			delete(docs, legacyKind)
		}
	}
	now := time.Now().UTC()
	docs[kind] = model.DocumentRecord{
		URL:        url,
		UploadedAt: &now,
		Status:     string(model.DocumentPending),
	}

	if err := s.users.SetDocuments(ctx, driverID, docs); err != nil {
		return nil, err
	}
	return s.Recompute(ctx, driverID)
}

// Review applies an admin decision to one document and recomputes. Every
// review is appended to the document_verification_requests audit trail.
func (s *VerificationService) Review(ctx context.Context, driverID, kind, decision, reason, reviewedBy string) (*DocumentSnapshot, error) {
	kind = model.CanonicalDocumentKind(kind)
	if !model.IsRequiredDocumentKind(kind) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDocument, kind)
	}
	if decision != string(model.DocumentVerified) && decision != string(model.DocumentRejected) {
		return nil, ErrBadDecision
	}

	driver, err := s.users.GetDriver(ctx, driverID)
	if err != nil {
		if errors.Is(err, repository.ErrDriverNotFound) {
			return nil, ErrDriverNotFound
		}
		return nil, err
	}

	rec, ok := model.DocumentRecordFor(driver.Driver.Documents, kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q not uploaded", ErrUnknownDocument, kind)
	}

	now := time.Now().UTC()
	rec.Status = decision
	rec.VerificationStatus = decision
	rec.Verified = decision == string(model.DocumentVerified)
	rec.Rejected = decision == string(model.DocumentRejected)
	rec.ReviewedBy = reviewedBy
	rec.ReviewedAt = &now
	if rec.Rejected {
		rec.RejectionReason = reason
	} else {
		rec.RejectionReason = ""
	}

	docs := driver.Driver.Documents
	for legacyKind := range docs {
		if legacyKind != kind && model.CanonicalDocumentKind(legacyKind) == kind {
			delete(docs, legacyKind)
		}
	}
	docs[kind] = rec

	if err := s.users.SetDocuments(ctx, driverID, docs); err != nil {
		return nil, err
	}

	if err := s.messages.InsertVerificationRequest(ctx, &model.VerificationRequest{
		DriverID:     driverID,
		DocumentKind: kind,
		Decision:     decision,
		Reason:       reason,
		ReviewedBy:   reviewedBy,
	}); err != nil {
		// Audit failures are logged, not surfaced: the review itself stands.
		log.Printf("[verification] WARNING: audit append failed for %s/%s: %v", driverID, kind, err)
	}

	return s.Recompute(ctx, driverID)
}

// Approve grants the admin `approved` status. Allowed only once every
// document already verifies; eligibility is unchanged (approved ⊇ verified).
func (s *VerificationService) Approve(ctx context.Context, driverID, reviewedBy string) (*DocumentSnapshot, error) {
	snap, err := s.Recompute(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if snap.Overall != model.VerificationVerified && snap.Overall != model.VerificationApproved {
		return nil, fmt.Errorf("%w: cannot approve driver in state %s", ErrBadDecision, snap.Overall)
	}
	if err := s.users.SetVerification(ctx, driverID, model.VerificationApproved, true); err != nil {
		return nil, err
	}
	s.Invalidate(driverID)
	if snap.Overall != model.VerificationApproved {
		s.events.DriverVerificationChanged(driverID, model.VerificationApproved)
	}
	snap.Overall = model.VerificationApproved
	log.Printf("[verification] driver %s approved by %s", driverID, reviewedBy)
	return snap, nil
}
