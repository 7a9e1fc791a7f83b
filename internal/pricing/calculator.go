package pricing

import (
	"fmt"
	"math"
	"strings"
	"time"

	"parkflow/internal/entities"
)

type Unit string

const (
	UnitMonth  Unit = "month"
	UnitWeek   Unit = "week"
	UnitDay    Unit = "day"
	UnitHour   Unit = "hour"
	UnitMinute Unit = "minute"
)

const (
	minutesPerHour  = 60
	minutesPerDay   = 24 * minutesPerHour
	minutesPerWeek  = 7 * minutesPerDay
	minutesPerMonth = 30 * minutesPerDay
)

type LineItem struct {
	Unit   Unit    `json:"unit"`
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
	Label  string  `json:"label"`
}

type Quote struct {
	Minutes int        `json:"minutes"`
	Total   float64    `json:"total"`
	Items   []LineItem `json:"items"`
}

func (q Quote) String() string {
	labels := make([]string, 0, len(q.Items))
	for _, it := range q.Items {
		labels = append(labels, it.Label)
	}
	return strings.Join(labels, " + ")
}

// Calculator prices a booking window against a parking tariff. Prices are for
// display; the backend recomputes the authoritative amount.
type Calculator interface {
	Quote(start, end time.Time, tariff entities.Tariff) Quote
}

// TieredCalculator decomposes the window greedily from months down to minutes,
// skipping units the tariff does not offer. A remainder is never billed above one
// unit of the tier that contains it; when it would be, it becomes one more unit of
// that tier instead. That cap keeps the total non-decreasing in the end time, and
// it departs from a plain greedy split: 23 hours at hourly 10 and daily 100 is
// billed as one day (100), not 23 hours (230).
type TieredCalculator struct{}

func NewTieredCalculator() *TieredCalculator {
	return &TieredCalculator{}
}

type tier struct {
	unit    Unit
	minutes int
	rate    float64
}

func tiersFor(t entities.Tariff) []tier {
	return []tier{
		{UnitMonth, minutesPerMonth, t.Monthly},
		{UnitWeek, minutesPerWeek, t.Weekly},
		{UnitDay, minutesPerDay, t.Daily},
		{UnitHour, minutesPerHour, t.Hourly},
		// leftover minutes are a fraction of the hourly rate
		{UnitMinute, 1, t.Hourly / minutesPerHour},
	}
}

func (c *TieredCalculator) Quote(start, end time.Time, tariff entities.Tariff) Quote {
	minutes := int(end.Sub(start) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	q := Quote{Minutes: minutes, Items: []LineItem{}}
	if minutes == 0 || !tariff.Computable() {
		return q
	}

	parts, ok := decompose(minutes, tiersFor(tariff))
	if !ok {
		return q
	}
	var total float64
	for _, p := range parts {
		amount := float64(p.count) * p.rate
		total += amount
		q.Items = append(q.Items, LineItem{
			Unit:   p.unit,
			Count:  p.count,
			Amount: round2(amount),
			Label:  label(p.unit, p.count, amount),
		})
	}
	q.Total = round2(total)
	return q
}

type part struct {
	unit  Unit
	count int
	rate  float64
}

func cost(parts []part) float64 {
	var sum float64
	for _, p := range parts {
		sum += float64(p.count) * p.rate
	}
	return sum
}

// decompose returns ok=false only when minutes remain and no tier can absorb them.
func decompose(minutes int, tiers []tier) ([]part, bool) {
	if minutes == 0 {
		return nil, true
	}
	if len(tiers) == 0 {
		return nil, false
	}
	t := tiers[0]
	if t.rate <= 0 {
		return decompose(minutes, tiers[1:])
	}

	count := minutes / t.minutes
	rest := minutes % t.minutes
	sub, ok := decompose(rest, tiers[1:])
	if rest > 0 && (!ok || cost(sub) >= t.rate) {
		count++
		sub = nil
	}

	var parts []part
	if count > 0 {
		parts = append(parts, part{unit: t.unit, count: count, rate: t.rate})
	}
	return append(parts, sub...), true
}

var unitNames = map[Unit][2]string{
	UnitMonth:  {"mois", "mois"},
	UnitWeek:   {"semaine", "semaines"},
	UnitDay:    {"jour", "jours"},
	UnitHour:   {"heure", "heures"},
	UnitMinute: {"minute", "minutes"},
}

func label(u Unit, count int, amount float64) string {
	names := unitNames[u]
	name := names[1]
	if count == 1 {
		name = names[0]
	}
	return fmt.Sprintf("%d %s à %.2fDt", count, name, round2(amount))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
