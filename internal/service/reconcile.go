package service

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jjenkins/countries/internal/model"
	"golang.org/x/text/cases"
)

const (
	MinGDPMultiplier = 1000
	MaxGDPMultiplier = 2000

	requiredFieldsMessage = "name and population are required"
)

// MultiplierSource supplies the per-country multiplier used to estimate GDP
type MultiplierSource interface {
	Multiplier() int
}

// RandomMultiplier draws uniformly from [MinGDPMultiplier, MaxGDPMultiplier]
type RandomMultiplier struct{}

func (RandomMultiplier) Multiplier() int {
	return MinGDPMultiplier + rand.IntN(MaxGDPMultiplier-MinGDPMultiplier+1)
}

// FixedMultiplier always returns the same value
type FixedMultiplier int

func (m FixedMultiplier) Multiplier() int {
	return int(m)
}

// CountryUpdate is a canonical record routed onto an existing row
type CountryUpdate struct {
	ID      int64
	Country model.Country
}

// Diff is the insert/update split of one refresh
type Diff struct {
	ToInsert []model.Country
	ToUpdate []CountryUpdate
}

// Total returns the number of records in the diff
func (d *Diff) Total() int {
	return len(d.ToInsert) + len(d.ToUpdate)
}

// Reconciler turns raw external records into canonical rows and diffs them
// against the stored snapshot. It performs no I/O.
type Reconciler struct {
	multiplier MultiplierSource
	validate   *validator.Validate
}

// NewReconciler creates a new Reconciler. A nil source uses RandomMultiplier.
func NewReconciler(multiplier MultiplierSource) *Reconciler {
	if multiplier == nil {
		multiplier = RandomMultiplier{}
	}

	v := validator.New()
	v.RegisterCustomTypeFunc(nullValue, sql.NullString{}, sql.NullFloat64{})

	return &Reconciler{multiplier: multiplier, validate: v}
}

// nullValue exposes the underlying value of sql.Null* fields to the validator
func nullValue(field reflect.Value) any {
	if valuer, ok := field.Interface().(driver.Valuer); ok {
		if val, err := valuer.Value(); err == nil {
			return val
		}
	}
	return nil
}

// Reconcile canonicalizes raw and partitions the result against existing
func (r *Reconciler) Reconcile(raw []model.RawCountry, rates model.RatesTable, existing []model.CountryRef, refreshedAt time.Time) (*Diff, error) {
	prepared, err := r.Prepare(raw, rates, refreshedAt)
	if err != nil {
		return nil, err
	}
	return Partition(prepared, existing), nil
}

// Prepare builds one canonical record per raw entry, in input order.
// The first invalid entry fails the whole batch with a *ValidationError.
func (r *Reconciler) Prepare(raw []model.RawCountry, rates model.RatesTable, refreshedAt time.Time) ([]model.Country, error) {
	fold := cases.Fold()
	seen := make(map[string]int, len(raw))
	prepared := make([]model.Country, 0, len(raw))

	for i, rc := range raw {
		c, err := r.canonicalize(i, rc, rates, refreshedAt)
		if err != nil {
			return nil, err
		}

		key := fold.String(c.Name)
		if first, dup := seen[key]; dup {
			return nil, &ValidationError{
				Index:   i,
				Field:   "name",
				Message: fmt.Sprintf("duplicate country name %q (first seen at %d)", c.Name, first),
			}
		}
		seen[key] = i

		prepared = append(prepared, *c)
	}

	return prepared, nil
}

func (r *Reconciler) canonicalize(i int, rc model.RawCountry, rates model.RatesTable, refreshedAt time.Time) (*model.Country, error) {
	if rc.Name == "" {
		return nil, &ValidationError{Index: i, Field: "name", Message: requiredFieldsMessage}
	}

	pop, ok := rc.Population.(float64)
	if !ok {
		return nil, &ValidationError{Index: i, Field: "population", Message: requiredFieldsMessage}
	}
	if pop < 0 || pop != math.Trunc(pop) || pop > math.MaxInt64 {
		return nil, &ValidationError{Index: i, Field: "population", Message: "population must be a non-negative integer"}
	}

	c := &model.Country{
		Name:            rc.Name,
		Capital:         nullString(rc.Capital),
		Region:          nullString(rc.Region),
		Population:      int64(pop),
		FlagURL:         nullString(rc.Flag),
		LastRefreshedAt: refreshedAt,
	}

	switch {
	case len(rc.Currencies) == 0:
		c.EstimatedGDP = sql.NullFloat64{Float64: 0, Valid: true}
	case rc.Currencies[0].Code != "":
		code := strings.ToUpper(rc.Currencies[0].Code)
		c.CurrencyCode = nullString(code)
		if rate, ok := rates[code]; ok && rate > 0 {
			gdp := float64(c.Population) * float64(r.multiplier.Multiplier()) / rate
			c.ExchangeRate = sql.NullFloat64{Float64: rate, Valid: true}
			c.EstimatedGDP = sql.NullFloat64{Float64: gdp, Valid: true}
		}
	}

	if err := r.validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return nil, &ValidationError{
				Index:   i,
				Field:   fe.Field(),
				Message: fmt.Sprintf("%s failed the %q rule", fe.Field(), fe.Tag()),
			}
		}
		return nil, &ValidationError{Index: i, Message: err.Error()}
	}

	return c, nil
}

// Partition routes each record to an update when its case-folded name
// matches an existing row, otherwise to an insert. Input order is kept.
func Partition(prepared []model.Country, existing []model.CountryRef) *Diff {
	fold := cases.Fold()

	byName := make(map[string]int64, len(existing))
	for _, ref := range existing {
		byName[fold.String(ref.Name)] = ref.ID
	}

	diff := &Diff{}
	for _, c := range prepared {
		if id, ok := byName[fold.String(c.Name)]; ok {
			diff.ToUpdate = append(diff.ToUpdate, CountryUpdate{ID: id, Country: c})
			continue
		}
		diff.ToInsert = append(diff.ToInsert, c)
	}

	return diff
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
