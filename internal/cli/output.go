package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spec-kit/ticket-desk/internal/service"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTickets(w io.Writer, view service.TicketView) error {
	tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSTATUS\tPRIORITY\tCUSTOMER\tSUMMARY\tTIMER")
	for _, t := range view.Page.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, dash(t.CreatedAt), dash(t.Status), dash(t.Priority), dash(t.Company.Name), dash(t.Summary), dash(string(t.PlayStatus)))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	suffix := ""
	if view.Page.HasMore {
		suffix = ", more available"
	}
	if view.Stale {
		suffix += ", offline copy"
	}
	_, err := fmt.Fprintf(w, "%d of %d tickets on %q%s\n", len(view.Page.Items), view.Page.Total, view.Tab, suffix)
	return err
}

func writeTimer(w io.Writer, s service.TimerSnapshot) error {
	_, err := fmt.Fprintf(w, "ticket #%d: %s %s (%d min)\n", s.Key.TicketID, s.Status, s.Display, s.Minutes)
	return err
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
