package validation

import "testing"

func TestAuthRequestValidator_ValidateUsername(t *testing.T) {
	validator := NewAuthRequestValidator()

	valid := []string{"testuser", "user123", "test_user", "test-user", "abc"}
	for _, username := range valid {
		if err := validator.ValidateUsername(username); err != nil {
			t.Errorf("ValidateUsername(%q) error = %v, want nil", username, err)
		}
	}

	invalid := []string{"", "ab", "has space", "has@symbol", string(make([]byte, 51))}
	for _, username := range invalid {
		if err := validator.ValidateUsername(username); err == nil {
			t.Errorf("ValidateUsername(%q) error = nil, want error", username)
		}
	}
}

func TestAuthRequestValidator_ValidatePassword(t *testing.T) {
	validator := NewAuthRequestValidator()

	if err := validator.ValidatePassword("secret1"); err != nil {
		t.Errorf("ValidatePassword() error = %v, want nil", err)
	}
	for _, password := range []string{"", "short"} {
		if err := validator.ValidatePassword(password); err == nil {
			t.Errorf("ValidatePassword(%q) error = nil, want error", password)
		}
	}
}

func TestAuthRequestValidator_ValidateEmail(t *testing.T) {
	validator := NewAuthRequestValidator()

	// Email is optional
	if err := validator.ValidateEmail(""); err != nil {
		t.Errorf("ValidateEmail(\"\") error = %v, want nil", err)
	}
	if err := validator.ValidateEmail("user@example.com"); err != nil {
		t.Errorf("ValidateEmail() error = %v, want nil", err)
	}
	if err := validator.ValidateEmail("not-an-email"); err == nil {
		t.Error("ValidateEmail(\"not-an-email\") error = nil, want error")
	}
}

func TestAuthRequestValidator_ValidatePlan(t *testing.T) {
	validator := NewAuthRequestValidator()

	for _, plan := range []string{"", "free", "pro"} {
		if err := validator.ValidatePlan(plan); err != nil {
			t.Errorf("ValidatePlan(%q) error = %v, want nil", plan, err)
		}
	}
	if err := validator.ValidatePlan("enterprise"); err == nil {
		t.Error("ValidatePlan(\"enterprise\") error = nil, want error")
	}
}

func TestAuthRequestValidator_ValidateRegisterRequest(t *testing.T) {
	validator := NewAuthRequestValidator()

	if err := validator.ValidateRegisterRequest("newuser", "new@example.com", "secret1", ""); err != nil {
		t.Errorf("ValidateRegisterRequest() error = %v, want nil", err)
	}
	if err := validator.ValidateRegisterRequest("newuser", "new@example.com", "secret1", "pro"); err != nil {
		t.Errorf("ValidateRegisterRequest() with pro plan: error = %v, want nil", err)
	}
	if err := validator.ValidateRegisterRequest("x", "", "secret1", ""); err == nil {
		t.Error("ValidateRegisterRequest() with bad username: error = nil, want error")
	}
	if err := validator.ValidateRegisterRequest("newuser", "", "x", ""); err == nil {
		t.Error("ValidateRegisterRequest() with bad password: error = nil, want error")
	}
	if err := validator.ValidateRegisterRequest("newuser", "", "secret1", "vip"); err == nil {
		t.Error("ValidateRegisterRequest() with unknown plan: error = nil, want error")
	}
}
