package cli

import (
	"github.com/spf13/cobra"

	"github.com/spec-kit/ticket-desk/internal/domain"
)

type ticketsParams struct {
	tab      string
	search   string
	status   string
	priority string
	customer int64
	from     string
	to       string
	sort     string
	pages    int
	refresh  bool
	json     bool
}

func ticketsCommand(env *deskEnv) *cobra.Command {
	var p ticketsParams
	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "List tickets of a tab with filters applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			tech, err := env.technician(ctx)
			if err != nil {
				return err
			}
			tab, err := domain.ParseTab(p.tab)
			if err != nil {
				return err
			}
			env.desk.Session.UpdateFilters(p.patch(cmd))

			if p.refresh {
				if err := env.desk.Listing.Refresh(ctx, tech); err != nil {
					return err
				}
			}
			view, err := env.desk.Listing.View(ctx, tech, tab)
			if err != nil {
				return err
			}
			for i := 1; i < p.pages && view.Page.HasMore; i++ {
				if view, err = env.desk.Listing.LoadMore(ctx, tech, tab); err != nil {
					return err
				}
			}
			if p.json {
				return writeJSON(cmd.OutOrStdout(), view.Page.Items)
			}
			return writeTickets(cmd.OutOrStdout(), view)
		},
	}
	f := cmd.Flags()
	f.StringVar(&p.tab, "tab", string(domain.TabMy), "tab to list: my, new or all")
	f.StringVar(&p.search, "search", "", "search term; an all-digit term also looks the ticket up by id")
	f.StringVar(&p.status, "status", domain.FilterAll, "status label or all")
	f.StringVar(&p.priority, "priority", domain.FilterAll, "priority label or all")
	f.Int64Var(&p.customer, "customer", 0, "customer id")
	f.StringVar(&p.from, "from", "", "created on or after YYYY-MM-DD")
	f.StringVar(&p.to, "to", "", "created on or before YYYY-MM-DD")
	f.StringVar(&p.sort, "sort", string(domain.SortDateDesc), "sort key, e.g. date-desc, priority-high, company-asc")
	f.IntVar(&p.pages, "pages", 1, "number of pages to show")
	f.BoolVar(&p.refresh, "refresh", false, "bypass the cache")
	f.BoolVar(&p.json, "json", false, "print JSON")
	return cmd
}

// patch carries only the filters given on the command line.
func (p ticketsParams) patch(cmd *cobra.Command) domain.FilterPatch {
	var patch domain.FilterPatch
	changed := cmd.Flags().Changed
	if changed("search") {
		patch.SearchTerm = &p.search
	}
	if changed("status") {
		patch.Status = &p.status
	}
	if changed("priority") {
		patch.Priority = &p.priority
	}
	if changed("customer") {
		patch.CustomerID = &p.customer
	}
	if changed("from") {
		patch.DateFrom = &p.from
	}
	if changed("to") {
		patch.DateTo = &p.to
	}
	if changed("sort") {
		key := domain.SortKey(p.sort)
		patch.SortBy = &key
	}
	return patch
}
