package checkout

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/foodmarketplace/pkg/errors"
)

const (
	tagCardNumber  = "card_number"
	tagExpiryMonth = "expiry_month"
	tagExpiryYear  = "expiry_year"
	tagPhone       = "phone"
	tagCVV         = "cvv"

	expiryYearWindow = 20
)

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)

// PaymentForm is the simulated card form submitted at checkout.
type PaymentForm struct {
	FullName    string `json:"fullName" validate:"required,max=120"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone" validate:"required,phone"`
	Address     string `json:"address" validate:"omitempty,max=240"`
	CardHolder  string `json:"cardHolder" validate:"omitempty,max=120"`
	CardNumber  string `json:"cardNumber" validate:"required,card_number"`
	ExpiryMonth string `json:"expiryMonth" validate:"required,expiry_month"`
	ExpiryYear  string `json:"expiryYear" validate:"required,expiry_year"`
	CVV         string `json:"cvv" validate:"required,cvv"`
}

// RegisterRules installs the payment form tags on v. The expiry year window is
// evaluated against now at validation time.
func RegisterRules(v *validator.Validate, now func() time.Time) error {
	if now == nil {
		now = time.Now
	}
	rules := map[string]validator.Func{
		tagCardNumber:  func(fl validator.FieldLevel) bool { return validCardNumber(fl.Field().String()) },
		tagExpiryMonth: func(fl validator.FieldLevel) bool { return validExpiryMonth(fl.Field().String()) },
		tagExpiryYear:  func(fl validator.FieldLevel) bool { return validExpiryYear(fl.Field().String(), now()) },
		tagPhone:       func(fl validator.FieldLevel) bool { return validPhone(fl.Field().String()) },
		tagCVV:         func(fl validator.FieldLevel) bool { return validCVV(fl.Field().String()) },
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %s: %w", tag, err)
		}
	}
	return nil
}

// Validator checks payment forms.
type Validator struct {
	v *validator.Validate
}

// NewValidator builds a Validator whose expiry window follows now.
func NewValidator(now func() time.Time) (*Validator, error) {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	if err := RegisterRules(v, now); err != nil {
		return nil, err
	}
	return &Validator{v: v}, nil
}

// ValidatePayment returns a VALIDATION_ERROR listing every rejected field.
func (val *Validator) ValidatePayment(form PaymentForm) error {
	err := val.v.Struct(form)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment details")
	}
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		details[fe.Field()] = Message(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment details").WithDetails(details)
}

// Message renders a field error for the payment rules; other tags get a
// generic message.
func Message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case tagPhone:
		return "must be a valid phone number"
	case tagCardNumber:
		return "must be a valid card number"
	case tagExpiryMonth:
		return "must be a valid month (01-12)"
	case tagExpiryYear:
		return "must be a valid year"
	case tagCVV:
		return "must be a valid CVV"
	}
	return "is invalid"
}

func stripSpaces(value string) string {
	return strings.Join(strings.Fields(value), "")
}

func allDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func validCardNumber(value string) bool {
	clean := stripSpaces(value)
	return allDigits(clean) && len(clean) >= 13 && len(clean) <= 19
}

func validExpiryMonth(value string) bool {
	value = strings.TrimSpace(value)
	if len(value) > 2 || !allDigits(value) {
		return false
	}
	month, _ := strconv.Atoi(value)
	return month >= 1 && month <= 12
}

// validExpiryYear accepts a two-digit year in [current, current+20].
func validExpiryYear(value string, now time.Time) bool {
	value = strings.TrimSpace(value)
	if len(value) != 2 || !allDigits(value) {
		return false
	}
	yy, _ := strconv.Atoi(value)
	year := 2000 + yy
	current := now.Year()
	return year >= current && year <= current+expiryYearWindow
}

func validPhone(value string) bool {
	return phonePattern.MatchString(stripSpaces(value))
}

func validCVV(value string) bool {
	value = strings.TrimSpace(value)
	return allDigits(value) && len(value) >= 3 && len(value) <= 4
}
