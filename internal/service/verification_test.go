package service

import (
	"testing"
	"time"

	"github.com/shiva/swiftparcel/internal/model"
)

func uploadedDoc(status string) model.DocumentRecord {
	now := time.Now()
	return model.DocumentRecord{URL: "https://cdn.example/doc.jpg", UploadedAt: &now, Status: status}
}

func allVerified() map[string]model.DocumentRecord {
	docs := make(map[string]model.DocumentRecord)
	for _, kind := range model.RequiredDocumentKinds {
		docs[kind] = uploadedDoc("verified")
	}
	return docs
}

func TestClassifyDocument(t *testing.T) {
	cases := []struct {
		name string
		rec  model.DocumentRecord
		want model.DocumentStatus
	}{
		{"fresh upload", uploadedDoc("pending"), model.DocumentPending},
		{"status verified", uploadedDoc("verified"), model.DocumentVerified},
		{"status rejected", uploadedDoc("rejected"), model.DocumentRejected},
		{"flag verified", model.DocumentRecord{URL: "u", Verified: true}, model.DocumentVerified},
		{"flag rejected", model.DocumentRecord{URL: "u", Rejected: true}, model.DocumentRejected},
		{"verification_status approved", model.DocumentRecord{URL: "u", VerificationStatus: "approved"}, model.DocumentVerified},
		// Re-reviewed and rejected: both markers set, rejection wins.
		{"rejection wins", model.DocumentRecord{URL: "u", Verified: true, Rejected: true}, model.DocumentRejected},
		{"rejection wins over status", model.DocumentRecord{URL: "u", Status: "verified", VerificationStatus: "rejected"}, model.DocumentRejected},
	}
	for _, c := range cases {
		if got := ClassifyDocument(c.rec); got != c.want {
			t.Errorf("%s: ClassifyDocument = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestDeriveStatus_NotUploaded(t *testing.T) {
	status, _, missing := DeriveStatus(nil, model.VerificationNotUploaded)
	if status != model.VerificationNotUploaded {
		t.Errorf("status = %v, want not_uploaded", status)
	}
	if len(missing) != len(model.RequiredDocumentKinds) {
		t.Errorf("missing = %v, want all five kinds", missing)
	}
}

func TestDeriveStatus_Pending(t *testing.T) {
	docs := map[string]model.DocumentRecord{
		"driving_license": uploadedDoc("verified"),
		"aadhaar_card":    uploadedDoc("pending"),
	}
	status, perKind, missing := DeriveStatus(docs, model.VerificationNotUploaded)
	if status != model.VerificationPending {
		t.Errorf("status = %v, want pending_verification", status)
	}
	if perKind["driving_license"] != model.DocumentVerified {
		t.Errorf("driving_license = %v, want verified", perKind["driving_license"])
	}
	if len(missing) != 3 {
		t.Errorf("missing = %v, want three kinds", missing)
	}
}

func TestDeriveStatus_RejectionDominates(t *testing.T) {
	docs := allVerified()
	docs["rc_book"] = uploadedDoc("rejected")
	status, _, _ := DeriveStatus(docs, model.VerificationNotUploaded)
	if status != model.VerificationRejected {
		t.Errorf("status = %v, want rejected", status)
	}
}

func TestDeriveStatus_AllVerified(t *testing.T) {
	status, _, missing := DeriveStatus(allVerified(), model.VerificationPending)
	if status != model.VerificationVerified {
		t.Errorf("status = %v, want verified", status)
	}
	if len(missing) != 0 {
		t.Errorf("missing = %v, want none", missing)
	}
}

func TestDeriveStatus_ApprovedSticks(t *testing.T) {
	// An admin-approved driver whose documents still verify stays approved.
	status, _, _ := DeriveStatus(allVerified(), model.VerificationApproved)
	if status != model.VerificationApproved {
		t.Errorf("status = %v, want approved preserved", status)
	}
	if !status.IsEligible() {
		t.Error("approved must be dispatch-eligible")
	}
}

func TestDeriveStatus_ApprovedRevokedOnRejection(t *testing.T) {
	docs := allVerified()
	docs["profile_photo"] = uploadedDoc("rejected")
	status, _, _ := DeriveStatus(docs, model.VerificationApproved)
	if status != model.VerificationRejected {
		t.Errorf("status = %v, want rejected despite prior approval", status)
	}
}

func TestDeriveStatus_LegacyCamelKeys(t *testing.T) {
	// Older rows keyed documents in camelCase; derivation must still see
	// them through the key compatibility mapping.
	docs := map[string]model.DocumentRecord{
		"drivingLicense": uploadedDoc("verified"),
		"aadhaarCard":    uploadedDoc("verified"),
		"bikeInsurance":  uploadedDoc("verified"),
		"rcBook":         uploadedDoc("verified"),
		"profilePhoto":   uploadedDoc("verified"),
	}
	status, _, missing := DeriveStatus(docs, model.VerificationNotUploaded)
	if status != model.VerificationVerified {
		t.Errorf("status = %v, want verified from camelCase keys (missing=%v)", status, missing)
	}
}

func TestDeriveStatus_UnknownKindsIgnored(t *testing.T) {
	docs := allVerified()
	docs["passport"] = uploadedDoc("rejected") // not a required kind
	status, _, _ := DeriveStatus(docs, model.VerificationNotUploaded)
	if status != model.VerificationVerified {
		t.Errorf("status = %v; a non-required document changed the outcome", status)
	}
}
