package indicator

import "fmt"

// SchemaError reports input rows or columns that cannot be used at all.
// Row is -1 when the problem is with the column set itself.
type SchemaError struct {
	Column string
	Row    int
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("schema: %s", e.Reason)
	}
	return fmt.Sprintf("schema: row %d column %s: %s", e.Row, e.Column, e.Reason)
}

// RangeError reports an indicator whose period is out of bounds or whose
// lookback exceeds the series length. Only that indicator is affected.
type RangeError struct {
	Indicator string
	Reason    string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("indicator %s: %s", e.Indicator, e.Reason)
}

func checkPeriod(name string, period, lo, hi int) error {
	if period < lo || period > hi {
		return &RangeError{Indicator: name, Reason: fmt.Sprintf("period %d outside [%d,%d]", period, lo, hi)}
	}
	return nil
}

func checkRows(name string, rows, need int) error {
	if rows < need {
		return &RangeError{Indicator: name, Reason: fmt.Sprintf("need %d rows, have %d", need, rows)}
	}
	return nil
}
