package gateway

import (
	"errors"
	"fmt"
	"time"
)

const (
	MetadataPayoutIDKey  = "payout_id"
	MetadataPartnerIDKey = "partner_id"
)

var (
	ErrDestinationRequired = errors.New("gateway destination is required")
	ErrTransferRequired    = errors.New("transfer id is required")
)

type TransferRequest struct {
	Destination    string
	AmountCents    int64
	Currency       string
	IdempotencyKey string
	Metadata       map[string]string
}

type Transfer struct {
	ID string
}

type PayoutRequest struct {
	Destination    string
	AmountCents    int64
	Currency       string
	IdempotencyKey string
	Metadata       map[string]string
}

// ReversalRequest pulls a transfer back from the connected account.
type ReversalRequest struct {
	TransferID     string
	IdempotencyKey string
	Metadata       map[string]string
}

type PayoutReceipt struct {
	ID          string
	ArrivalDate *time.Time
}

// Error is a failed gateway call. Reason is the provider's machine code.
type Error struct {
	Op     string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway %s failed (%s): %v", e.Op, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Reason returns the provider code carried by err, or a generic one.
func Reason(err error) string {
	var gwErr *Error
	if errors.As(err, &gwErr) && gwErr.Reason != "" {
		return gwErr.Reason
	}
	return "gateway_error"
}
