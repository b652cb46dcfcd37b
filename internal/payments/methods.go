package payments

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/chalets-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/chalets-backend/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// Method is the closed set of payment methods. Each variant carries its own
// fields and its own processing step; the unexported method keeps the set
// sealed to this package.
type Method interface {
	Kind() enums.PaymentMethod
	Validate(now time.Time) error
	process(ctx context.Context, env processEnv, amount decimal.Decimal) (Outcome, error)
}

// Outcome is what a processing step reports back.
type Outcome struct {
	Status        enums.PaymentStatus
	ExternalID    string
	FailureReason string
	Details       map[string]any
}

type processEnv struct {
	cards CardAuthorizer
	now   time.Time
}

type CreditCard struct {
	Number      string `json:"card_number" validate:"required,number,min=13,max=19"`
	HolderName  string `json:"card_holder_name" validate:"required,max=255"`
	ExpiryMonth int    `json:"expiry_month" validate:"required,min=1,max=12"`
	ExpiryYear  int    `json:"expiry_year" validate:"required"`
	CVC         string `json:"cvc" validate:"required,number,min=3,max=4"`
	// SourceID is a tokenized card nonce used by the hosted gateway.
	SourceID string `json:"source_id" validate:"omitempty,max=255"`
}

type BankTransfer struct {
	Reference string `json:"reference" validate:"omitempty,max=255"`
}

type DigitalWallet struct {
	WalletReference string `json:"wallet_reference" validate:"omitempty,max=255"`
}

type Cash struct{}

func (CreditCard) Kind() enums.PaymentMethod    { return enums.PaymentMethodCreditCard }
func (BankTransfer) Kind() enums.PaymentMethod  { return enums.PaymentMethodBankTransfer }
func (DigitalWallet) Kind() enums.PaymentMethod { return enums.PaymentMethodDigitalWallet }
func (Cash) Kind() enums.PaymentMethod          { return enums.PaymentMethodCash }

func (c CreditCard) Validate(now time.Time) error {
	if err := validateStruct(c); err != nil {
		return err
	}
	if c.ExpiryYear < now.Year() {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"expiry_year": fmt.Sprintf("must be at least %d", now.Year())})
	}
	return nil
}

func (b BankTransfer) Validate(time.Time) error  { return validateStruct(b) }
func (w DigitalWallet) Validate(time.Time) error { return validateStruct(w) }
func (Cash) Validate(time.Time) error            { return nil }

// LastFour returns the trailing digits safe to persist.
func (c CreditCard) LastFour() string {
	if len(c.Number) < 4 {
		return c.Number
	}
	return c.Number[len(c.Number)-4:]
}

func (c CreditCard) process(ctx context.Context, env processEnv, amount decimal.Decimal) (Outcome, error) {
	if env.cards == nil {
		return Outcome{}, fmt.Errorf("card authorizer not configured")
	}
	auth, err := env.cards.Authorize(ctx, c, amount)
	if err != nil {
		return Outcome{}, err
	}
	details := map[string]any{
		"card_last_four": c.LastFour(),
		"card_holder":    c.HolderName,
		"expiry":         fmt.Sprintf("%02d/%d", c.ExpiryMonth, c.ExpiryYear),
		"gateway":        auth.Processor,
	}
	if !auth.Approved {
		details["gateway_response"] = "declined"
		return Outcome{
			Status:        enums.PaymentStatusFailed,
			FailureReason: auth.DeclineReason,
			Details:       details,
		}, nil
	}
	details["gateway_response"] = "approved"
	details["authorization_code"] = auth.Code
	return Outcome{
		Status:     enums.PaymentStatusCompleted,
		ExternalID: transactionID("CC"),
		Details:    details,
	}, nil
}

func (b BankTransfer) process(context.Context, processEnv, decimal.Decimal) (Outcome, error) {
	details := map[string]any{"verification": "pending_manual_review"}
	if b.Reference != "" {
		details["reference"] = b.Reference
	}
	return Outcome{Status: enums.PaymentStatusPending, ExternalID: transactionID("BT"), Details: details}, nil
}

func (w DigitalWallet) process(context.Context, processEnv, decimal.Decimal) (Outcome, error) {
	details := map[string]any{}
	if w.WalletReference != "" {
		details["wallet_reference"] = w.WalletReference
	}
	return Outcome{Status: enums.PaymentStatusCompleted, ExternalID: transactionID("DW"), Details: details}, nil
}

func (Cash) process(context.Context, processEnv, decimal.Decimal) (Outcome, error) {
	return Outcome{
		Status:     enums.PaymentStatusCompleted,
		ExternalID: transactionID("CASH"),
		Details:    map[string]any{"collected": "on_site"},
	}, nil
}

// MethodFields is the flat request shape; BuildMethod picks the fields the
// chosen method needs.
type MethodFields struct {
	CardNumber      string
	CardHolderName  string
	ExpiryMonth     int
	ExpiryYear      int
	CVC             string
	SourceID        string
	Reference       string
	WalletReference string
}

// BuildMethod turns a method name and its fields into a Method variant.
func BuildMethod(kind enums.PaymentMethod, fields MethodFields) (Method, error) {
	switch kind {
	case enums.PaymentMethodCreditCard:
		return CreditCard{
			Number:      strings.ReplaceAll(strings.TrimSpace(fields.CardNumber), " ", ""),
			HolderName:  strings.TrimSpace(fields.CardHolderName),
			ExpiryMonth: fields.ExpiryMonth,
			ExpiryYear:  fields.ExpiryYear,
			CVC:         strings.TrimSpace(fields.CVC),
			SourceID:    strings.TrimSpace(fields.SourceID),
		}, nil
	case enums.PaymentMethodBankTransfer:
		return BankTransfer{Reference: strings.TrimSpace(fields.Reference)}, nil
	case enums.PaymentMethodDigitalWallet:
		return DigitalWallet{WalletReference: strings.TrimSpace(fields.WalletReference)}, nil
	case enums.PaymentMethodCash:
		return Cash{}, nil
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unsupported payment method %q", kind).
			WithDetails(map[string]string{"payment_method": "is invalid"})
	}
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := map[string]string{}
	for _, fe := range errs {
		details[fe.Field()] = validationMessage(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "number":
		return "must contain digits only"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	}
	return "is invalid"
}

func transactionID(prefix string) string {
	return prefix + "_" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}
