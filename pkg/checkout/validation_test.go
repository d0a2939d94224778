package checkout

import (
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/foodmarketplace/pkg/errors"
)

var fixedNow = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }

func validForm() PaymentForm {
	return PaymentForm{
		FullName:    "Ana García",
		Email:       "ana@example.com",
		Phone:       "+34 600 123 456",
		CardNumber:  "4111 1111 1111 1111",
		ExpiryMonth: "09",
		ExpiryYear:  "27",
		CVV:         "123",
	}
}

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator(fixedNow)
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	return v
}

func TestValidatePayment_Valid(t *testing.T) {
	if err := newTestValidator(t).ValidatePayment(validForm()); err != nil {
		t.Fatalf("expected valid form, got %v", err)
	}
}

func TestValidatePayment_FieldErrors(t *testing.T) {
	cases := []struct {
		name  string
		field string
		edit  func(*PaymentForm)
	}{
		{"missing email", "email", func(f *PaymentForm) { f.Email = "" }},
		{"bad email", "email", func(f *PaymentForm) { f.Email = "ana@" }},
		{"bad phone", "phone", func(f *PaymentForm) { f.Phone = "0123" }},
		{"short card", "cardNumber", func(f *PaymentForm) { f.CardNumber = "4111 1111 111" }},
		{"long card", "cardNumber", func(f *PaymentForm) { f.CardNumber = "41111111111111111111" }},
		{"letters in card", "cardNumber", func(f *PaymentForm) { f.CardNumber = "4111 1111 1111 111a" }},
		{"month zero", "expiryMonth", func(f *PaymentForm) { f.ExpiryMonth = "00" }},
		{"month thirteen", "expiryMonth", func(f *PaymentForm) { f.ExpiryMonth = "13" }},
		{"past year", "expiryYear", func(f *PaymentForm) { f.ExpiryYear = "24" }},
		{"far year", "expiryYear", func(f *PaymentForm) { f.ExpiryYear = "46" }},
		{"four digit year", "expiryYear", func(f *PaymentForm) { f.ExpiryYear = "2027" }},
		{"short cvv", "cvv", func(f *PaymentForm) { f.CVV = "12" }},
		{"long cvv", "cvv", func(f *PaymentForm) { f.CVV = "12345" }},
	}

	v := newTestValidator(t)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			form := validForm()
			tc.edit(&form)

			err := v.ValidatePayment(form)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			details, ok := typed.Details().(map[string]string)
			if !ok {
				t.Fatalf("unexpected details type %T", typed.Details())
			}
			if _, ok := details[tc.field]; !ok {
				t.Fatalf("expected %s in details, got %v", tc.field, details)
			}
		})
	}
}

func TestValidatePayment_YearBounds(t *testing.T) {
	v := newTestValidator(t)
	for _, yy := range []string{"25", "45"} {
		form := validForm()
		form.ExpiryYear = yy
		if err := v.ValidatePayment(form); err != nil {
			t.Fatalf("year %s should be accepted: %v", yy, err)
		}
	}
}

func TestValidatePayment_SingleDigitMonth(t *testing.T) {
	form := validForm()
	form.ExpiryMonth = "3"
	if err := newTestValidator(t).ValidatePayment(form); err != nil {
		t.Fatalf("expected single digit month to pass, got %v", err)
	}
}
