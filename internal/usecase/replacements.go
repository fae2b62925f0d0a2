package usecase

import (
	"sort"
	"strings"
	"time"
)

// Replacement renders one placeholder for the given moment.
type Replacement func(now time.Time) string

// Replacements is the placeholder table used when texts are published.
// Build it once at startup and pass it where needed.
type Replacements struct {
	table map[string]Replacement
	keys  []string
}

const dateLayout = "02.01.2006"

func NewReplacements() *Replacements {
	r := &Replacements{table: map[string]Replacement{}}
	for _, wd := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday} {
		wd := wd
		r.Register("{next_"+strings.ToLower(wd.String())+"}", func(now time.Time) string {
			return NextWeekday(wd, now).Format(dateLayout)
		})
	}
	return r
}

func (r *Replacements) Register(placeholder string, fn Replacement) {
	if _, ok := r.table[placeholder]; !ok {
		r.keys = append(r.keys, placeholder)
		sort.Strings(r.keys)
	}
	r.table[placeholder] = fn
}

// Apply expands every known placeholder in text.
func (r *Replacements) Apply(text string, now time.Time) string {
	if r == nil || !strings.Contains(text, "{") {
		return text
	}
	for _, k := range r.keys {
		if strings.Contains(text, k) {
			text = strings.ReplaceAll(text, k, r.table[k](now))
		}
	}
	return text
}

// NextWeekday is the first date strictly after from that falls on target.
func NextWeekday(target time.Weekday, from time.Time) time.Time {
	days := (int(target) - int(from.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return from.AddDate(0, 0, days)
}
