package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/shiva/swiftparcel/internal/model"
)

func TestRoleUserID_Deterministic(t *testing.T) {
	a := RoleUserID("+919876543210", model.TypeCustomer)
	b := RoleUserID("+919876543210", model.TypeCustomer)
	if a != b {
		t.Errorf("same inputs produced different ids: %q vs %q", a, b)
	}
	if len(a) != 28 {
		t.Errorf("id length = %d, want 28", len(a))
	}
}

func TestRoleUserID_OneIdentityPerType(t *testing.T) {
	phone := "+919876543210"
	customer := RoleUserID(phone, model.TypeCustomer)
	driver := RoleUserID(phone, model.TypeDriver)
	admin := RoleUserID(phone, model.TypeAdmin)
	if customer == driver || driver == admin || customer == admin {
		t.Errorf("phone produced colliding ids: %q %q %q", customer, driver, admin)
	}
}

func TestRoleUserID_TrimsWhitespace(t *testing.T) {
	if RoleUserID(" +919876543210 ", model.TypeDriver) != RoleUserID("+919876543210", model.TypeDriver) {
		t.Error("whitespace changed the derived id")
	}
}

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier("test-secret")
	want := Identity{
		UserID:   RoleUserID("+919876543210", model.TypeDriver),
		UserType: model.TypeDriver,
		Phone:    "+919876543210",
	}

	token, err := v.Issue(want, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	got, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestVerifier_BearerPrefix(t *testing.T) {
	v := NewVerifier("test-secret")
	token, _ := v.Issue(Identity{
		UserID:   "u1",
		UserType: model.TypeCustomer,
		Phone:    "+911111111111",
	}, time.Hour)

	if _, err := v.Verify("Bearer " + token); err != nil {
		t.Errorf("Verify with Bearer prefix: %v", err)
	}
}

func TestVerifier_MissingToken(t *testing.T) {
	v := NewVerifier("test-secret")
	for _, raw := range []string{"", "Bearer ", "   "} {
		if _, err := v.Verify(raw); !errors.Is(err, ErrMissingToken) {
			t.Errorf("Verify(%q) error = %v, want ErrMissingToken", raw, err)
		}
	}
}

func TestVerifier_WrongSecret(t *testing.T) {
	token, _ := NewVerifier("secret-a").Issue(Identity{
		UserID: "u1", UserType: model.TypeCustomer, Phone: "+911111111111",
	}, time.Hour)

	if _, err := NewVerifier("secret-b").Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("cross-secret verify error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifier_Expired(t *testing.T) {
	v := NewVerifier("test-secret")
	token, _ := v.Issue(Identity{
		UserID: "u1", UserType: model.TypeCustomer, Phone: "+911111111111",
	}, -time.Minute)

	if _, err := v.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expired verify error = %v, want ErrTokenExpired", err)
	}
}

func TestVerifier_UnknownUserType(t *testing.T) {
	v := NewVerifier("test-secret")
	token, _ := v.Issue(Identity{
		UserID: "u1", UserType: "robot", Phone: "+911111111111",
	}, time.Hour)

	if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("unknown type verify error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifier_SubjectFallback(t *testing.T) {
	// Tokens minted before the subject claim was added carry no user id;
	// verification re-derives it from (phone, type).
	v := NewVerifier("test-secret")
	token, _ := v.Issue(Identity{
		UserType: model.TypeDriver,
		Phone:    "+919876543210",
	}, time.Hour)

	got, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if want := RoleUserID("+919876543210", model.TypeDriver); got.UserID != want {
		t.Errorf("fallback id = %q, want %q", got.UserID, want)
	}
}

func TestIdentity_IsAdmin(t *testing.T) {
	cases := []struct {
		name string
		id   Identity
		want bool
	}{
		{"admin role", Identity{UserType: model.TypeAdmin, Role: "admin"}, true},
		{"super admin", Identity{UserType: model.TypeAdmin, Role: "super_admin"}, true},
		{"admin type without role", Identity{UserType: model.TypeAdmin}, false},
		{"driver with admin role", Identity{UserType: model.TypeDriver, Role: "admin"}, false},
	}
	for _, c := range cases {
		if got := c.id.IsAdmin(); got != c.want {
			t.Errorf("%s: IsAdmin = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestVerifier_Expiry(t *testing.T) {
	v := NewVerifier("test-secret")
	token, err := v.Issue(Identity{
		UserID:   "u1",
		UserType: model.TypeDriver,
		Phone:    "+911234567890",
	}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	exp, ok := v.Expiry(token)
	if !ok {
		t.Fatal("Expiry not found on a freshly issued token")
	}
	if d := time.Until(exp); d < 55*time.Minute || d > 65*time.Minute {
		t.Errorf("expiry %v from now, want ≈1h", d)
	}

	if _, ok := v.Expiry("not-a-token"); ok {
		t.Error("Expiry reported ok for garbage input")
	}
	if _, ok := v.Expiry(""); ok {
		t.Error("Expiry reported ok for an empty token")
	}
}
