package order

import (
	"strings"

	"github.com/go-faster/errors"
)

// Status is the fulfilment state of an order.
type Status string

// Order lifecycle, in progression order.
const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
)

var lifecycle = []Status{StatusPending, StatusConfirmed, StatusShipped, StatusDelivered}

// Statuses returns every status in progression order.
func Statuses() []Status {
	out := make([]Status, len(lifecycle))
	copy(out, lifecycle)
	return out
}

// ParseStatus converts raw input into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if st.rank() < 0 {
		return "", errors.Wrapf(ErrInvalidStatus, "%q", s)
	}
	return st, nil
}

func (s Status) rank() int {
	for i, st := range lifecycle {
		if st == s {
			return i
		}
	}
	return -1
}

// Terminal reports whether no forward transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusDelivered
}

// CanAdvance reports whether to lies strictly later in the lifecycle than
// from. Skipping intermediate states is allowed.
func CanAdvance(from, to Status) bool {
	f, t := from.rank(), to.rank()
	return f >= 0 && t > f
}
