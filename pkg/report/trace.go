package report

import (
	"fmt"
	"io"

	"github.com/logrusorgru/aurora"

	"github.com/boristopalov/mellowmdp/pkg/core"
)

// PrintTrace writes one line per transition. Arrivals in a terminal state are
// highlighted and steps taken after one are dimmed.
func PrintTrace(w io.Writer, transitions []core.Transition, color bool) error {
	au := aurora.NewAurora(color)
	ended := false
	for i, tr := range transitions {
		line := fmt.Sprintf("%4d  %s", i, tr)
		var v aurora.Value
		switch {
		case tr.Done && ended:
			v = au.Faint(line)
		case tr.Done:
			v = au.Yellow(line)
			ended = true
		default:
			v = au.Green(line)
			ended = false
		}
		if _, err := fmt.Fprintln(w, v); err != nil {
			return err
		}
	}
	return nil
}
