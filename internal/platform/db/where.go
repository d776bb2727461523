package db

import (
	"strconv"
	"strings"
)

// Where accumulates AND-ed predicates. Each "?" in a condition is replaced
// by the next positional parameter.
type Where struct {
	conds []string
	args  []any
}

// Add appends a condition with its arguments.
func (w *Where) Add(cond string, args ...any) {
	for _, a := range args {
		w.args = append(w.args, a)
		cond = strings.Replace(cond, "?", "$"+strconv.Itoa(len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

// SQL renders the predicates, or TRUE when none were added.
func (w *Where) SQL() string {
	if len(w.conds) == 0 {
		return "TRUE"
	}
	return strings.Join(w.conds, " AND ")
}

// Args returns a copy of the collected arguments.
func (w *Where) Args() []any {
	return append([]any{}, w.args...)
}

// Next returns the placeholder for an argument appended after the collected ones.
func (w *Where) Next(extra int) string {
	return "$" + strconv.Itoa(len(w.args)+extra)
}
