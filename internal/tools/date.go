package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/dexter/internal/orchestrator"
)

// CurrentDate reports today's date.
type CurrentDate struct {
	now func() time.Time
}

// NewCurrentDate creates the current_date tool. now is usually time.Now.
func NewCurrentDate(now func() time.Time) *CurrentDate {
	return &CurrentDate{now: now}
}

func (c *CurrentDate) Spec() orchestrator.ToolSpec {
	return orchestrator.ToolSpec{
		Name: "current_date",
		Description: "Returns the current date and time. Use it first to establish temporal context " +
			"and to judge whether dates in other sources are current, upcoming or historical.",
	}
}

func (c *CurrentDate) Invoke(_ context.Context, _ map[string]any) (string, error) {
	now := c.now()
	return fmt.Sprintf("Current date: %s (Year: %d, Month: %d, Day: %d)",
		now.Format("January 02, 2006"), now.Year(), int(now.Month()), now.Day()), nil
}
