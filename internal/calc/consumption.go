// Package calc derives hourly and per-second consumption figures from a
// daily reading.
package calc

import (
	"math"
	"strconv"

	"github.com/Lllllllleong/pdftemplatefill/internal/apperrors"
)

// MaxDaily is the largest daily reading accepted.
const MaxDaily = 10000.0

// Options are the formula constants. Zero values select the defaults.
type Options struct {
	HourlyMultiplier float64
	SecondlyDivisor  float64
	Precision        *int
}

// DefaultOptions returns the standard constants: hourly = 3.9 × daily / 24,
// secondly = hourly / 3.6, both rounded to two decimals.
func DefaultOptions() Options {
	p := 2
	return Options{HourlyMultiplier: 3.9, SecondlyDivisor: 3.6, Precision: &p}
}

// Result holds the derived figures.
type Result struct {
	Hourly   float64 `json:"hourly"`
	Secondly float64 `json:"secondly"`
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.HourlyMultiplier <= 0 {
		o.HourlyMultiplier = def.HourlyMultiplier
	}
	if o.SecondlyDivisor <= 0 {
		o.SecondlyDivisor = def.SecondlyDivisor
	}
	if o.Precision == nil || *o.Precision < 0 {
		o.Precision = def.Precision
	}
	return o
}

// Consumption computes the hourly figure from daily and the per-second
// figure from the rounded hourly one.
func Consumption(daily float64, opts Options) (Result, error) {
	if math.IsNaN(daily) || math.IsInf(daily, 0) {
		return Result{}, apperrors.New(apperrors.KindValidation, "daily consumption must be a finite number")
	}
	if daily < 0 {
		return Result{}, apperrors.New(apperrors.KindValidation, "daily consumption must not be negative, got %v", daily)
	}
	if daily > MaxDaily {
		return Result{}, apperrors.New(apperrors.KindValidation, "daily consumption %v exceeds the maximum of %v", daily, MaxDaily)
	}
	opts = opts.withDefaults()

	hourly := Round(opts.HourlyMultiplier*daily/24, *opts.Precision)
	secondly := Round(hourly/opts.SecondlyDivisor, *opts.Precision)
	return Result{Hourly: hourly, Secondly: secondly}, nil
}

// Round rounds v half-up to precision decimals. The scaled value is
// re-parsed from a fixed nine-decimal rendering first so binary
// representation error (1.005 × 100 = 100.49999…) does not round down.
func Round(v float64, precision int) float64 {
	scale := math.Pow(10, float64(precision))
	scaled, err := strconv.ParseFloat(strconv.FormatFloat(v*scale, 'f', 9, 64), 64)
	if err != nil {
		scaled = v * scale
	}
	return math.Floor(scaled+0.5) / scale
}
