// Package delivery resolves shipping prices from a per-region rate table.
package delivery

import (
	_ "embed"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Mode is the way an order reaches the customer.
type Mode string

const (
	// ModeHome delivers to the customer's address.
	ModeHome Mode = "home"
	// ModeDesk delivers to a pickup desk in the customer's region.
	ModeDesk Mode = "desk"
)

var (
	// ErrRegionPricingNotFound is returned when the table has no rate for
	// the requested region. Checkout is blocked until a priced region is
	// chosen.
	ErrRegionPricingNotFound = errors.New("no delivery pricing for region")
	// ErrInvalidMode is returned for a mode other than home or desk.
	ErrInvalidMode = errors.New("invalid delivery mode")
)

// ParseMode converts raw input into a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeHome, ModeDesk:
		return m, nil
	default:
		return "", errors.Wrapf(ErrInvalidMode, "%q", s)
	}
}

// Resolver prices delivery of an order to a region.
type Resolver interface {
	Resolve(regionID string, mode Mode) (decimal.Decimal, error)
}

// Rate is the delivery price per mode for one region.
type Rate struct {
	Home decimal.Decimal
	Desk decimal.Decimal
}

// SubRegion is a municipality inside a region.
type SubRegion struct {
	ID     string
	Name   string
	NameAr string
}

// Region is a first-level administrative area with its delivery rate.
type Region struct {
	ID         string
	Name       string
	NameAr     string
	Rate       Rate
	SubRegions []SubRegion
}

// Table is an immutable delivery rate table. It implements Resolver.
type Table struct {
	regions []Region
	byID    map[string]int
}

var _ Resolver = (*Table)(nil)

// NewTable builds a table from regions. Region ids must be unique and rates
// must not be negative.
func NewTable(regions []Region) (*Table, error) {
	t := &Table{
		regions: make([]Region, 0, len(regions)),
		byID:    make(map[string]int, len(regions)),
	}
	for _, r := range regions {
		if r.ID == "" {
			return nil, errors.Errorf("region %q: empty id", r.Name)
		}
		if _, dup := t.byID[r.ID]; dup {
			return nil, errors.Errorf("region %q: duplicate id", r.ID)
		}
		if r.Rate.Home.IsNegative() || r.Rate.Desk.IsNegative() {
			return nil, errors.Errorf("region %q: negative rate", r.ID)
		}
		t.byID[r.ID] = len(t.regions)
		t.regions = append(t.regions, r)
	}
	return t, nil
}

// Resolve returns the delivery price for the region and mode. It is a pure
// lookup.
func (t *Table) Resolve(regionID string, mode Mode) (decimal.Decimal, error) {
	r, ok := t.Region(regionID)
	if !ok {
		return decimal.Zero, errors.Wrapf(ErrRegionPricingNotFound, "%q", regionID)
	}
	switch mode {
	case ModeHome:
		return r.Rate.Home, nil
	case ModeDesk:
		return r.Rate.Desk, nil
	default:
		return decimal.Zero, errors.Wrapf(ErrInvalidMode, "%q", mode)
	}
}

// Region returns the region with the given id.
func (t *Table) Region(id string) (Region, bool) {
	i, ok := t.byID[strings.TrimSpace(id)]
	if !ok {
		return Region{}, false
	}
	return t.regions[i], true
}

// Regions returns every region in table order.
func (t *Table) Regions() []Region {
	out := make([]Region, len(t.regions))
	copy(out, t.regions)
	return out
}

// HasSubRegion reports whether subRegionID belongs to regionID.
func (t *Table) HasSubRegion(regionID, subRegionID string) bool {
	r, ok := t.Region(regionID)
	if !ok {
		return false
	}
	for _, s := range r.SubRegions {
		if s.ID == subRegionID {
			return true
		}
	}
	return false
}

//go:embed rates.yaml
var defaultRates []byte

type fileRegion struct {
	ID         string          `yaml:"id"`
	Name       string          `yaml:"name"`
	NameAr     string          `yaml:"name_ar"`
	Home       string          `yaml:"home"`
	Desk       string          `yaml:"desk"`
	SubRegions []fileSubRegion `yaml:"sub_regions"`
}

type fileSubRegion struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	NameAr string `yaml:"name_ar"`
}

type file struct {
	Regions []fileRegion `yaml:"regions"`
}

// LoadTable reads a YAML rate table from path. An empty path selects the
// built-in table.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return ParseTable(defaultRates)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read delivery rates")
	}
	return ParseTable(data)
}

// ParseTable decodes a YAML rate table.
func ParseTable(data []byte) (*Table, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "decode delivery rates")
	}

	regions := make([]Region, 0, len(f.Regions))
	for _, fr := range f.Regions {
		home, err := decimal.NewFromString(fr.Home)
		if err != nil {
			return nil, errors.Wrapf(err, "region %q: home rate", fr.ID)
		}
		desk, err := decimal.NewFromString(fr.Desk)
		if err != nil {
			return nil, errors.Wrapf(err, "region %q: desk rate", fr.ID)
		}
		r := Region{
			ID:     fr.ID,
			Name:   fr.Name,
			NameAr: fr.NameAr,
			Rate:   Rate{Home: home, Desk: desk},
		}
		for _, fs := range fr.SubRegions {
			r.SubRegions = append(r.SubRegions, SubRegion(fs))
		}
		regions = append(regions, r)
	}
	return NewTable(regions)
}
