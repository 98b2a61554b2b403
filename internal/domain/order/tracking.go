package order

import (
	"crypto/rand"
	"encoding/base32"
	"io"
	"strings"

	"github.com/go-faster/errors"
)

const (
	trackingPrefix = "ORD-"
	// MinTrackingLookup is the shortest input accepted by tracking lookups.
	MinTrackingLookup = 5
)

var trackingEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewTrackingCode returns a code of the form ORD-XXXXXXXX.
func NewTrackingCode() (string, error) {
	return newTrackingCode(rand.Reader)
}

func newTrackingCode(r io.Reader) (string, error) {
	var buf [5]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return "", errors.Wrap(err, "read random")
	}
	return trackingPrefix + trackingEncoding.EncodeToString(buf[:]), nil
}

// NormalizeTrackingCode trims and uppercases user input.
func NormalizeTrackingCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
