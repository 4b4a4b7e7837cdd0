// Package violation provides the domain-rejection vocabulary the engine
// emits as OrderRejected / OrderCancelReject reasons (spec.md §7): invalid
// size, invalid price, no market, not found, zero modified quantity, and
// OCO partner rejection. These are never fatal — they are reported back
// through the event stream, unlike programmer errors which panic.
package violation

import "fmt"

// Code is a machine-readable identifier for a specific rejection.
type Code string

const (
	CodeSizeOutOfRange   Code = "SIZE_OUT_OF_RANGE"
	CodeMinStopDistance  Code = "MIN_STOP_DISTANCE"
	CodeMinLimitDistance Code = "MIN_LIMIT_DISTANCE"
	CodeNoMarket         Code = "NO_MARKET"
	CodeNotFound         Code = "NOT_FOUND"
	CodeZeroQuantity     Code = "ZERO_MODIFIED_QUANTITY"
	CodeOCOPartner       Code = "OCO_PARTNER_REJECTED"
)

// Violation describes a single domain rejection. Its Error() message is the
// human-readable reason string spec.md §7 requires on OrderRejected and
// OrderCancelReject events.
type Violation struct {
	Code   Code
	Reason string
}

func (v Violation) Error() string {
	return v.Reason
}

// New builds a Violation from a code and a formatted reason.
func New(code Code, format string, args ...any) Violation {
	return Violation{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// OCOPartnerRejected builds the fixed-format reason spec.md §4.4 requires:
// `"OCO order rejected from <id>"`.
func OCOPartnerRejected(fromOrderID string) Violation {
	return New(CodeOCOPartner, "OCO order rejected from %s", fromOrderID)
}
