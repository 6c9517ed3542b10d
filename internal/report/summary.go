package report

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/CZERTAINLY/netcheck/internal/model"
)

// Summary writes a plain text table of the report for the console.
func Summary(w io.Writer, r model.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "HOST\tPING\tOPEN PORTS\tSTATUS\n")
	for _, h := range r.Hosts {
		open := joinPorts(h.OpenPorts(), ",")
		if open == "" {
			open = "-"
		}
		status := h.Status()
		if h.Overridden {
			status += " (override)"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", h.Target.Host, h.PingStatus(), open, status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	elapsed := r.Finished.Sub(r.Started).Round(time.Millisecond)
	_, err := fmt.Fprintf(w, "%d/%d hosts up, checked in %s\n", r.UpCount(), len(r.Hosts), elapsed)
	return err
}
