package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/catalog-site/internal/backend"
	"github.com/ziadkadry99/catalog-site/internal/catalog"
	"github.com/ziadkadry99/catalog-site/internal/filters"
	"github.com/ziadkadry99/catalog-site/internal/localstore"
	"github.com/ziadkadry99/catalog-site/internal/urlstate"
)

var (
	browseURL         string
	browseAPI         string
	browseSearch      string
	browseCategory    string
	browseFilters     []string
	browsePage        int
	browseView        string
	browseInteractive bool
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse the product catalog from the terminal",
	Long: `Runs the catalog filter controller against the backend API. The state is
read from --url first and from local storage when the URL carries none, so
a previous session resumes where it left off. Flags are applied in order:
search, category, filters, view, page.

Examples:
  catalogsite browse --search alt --category cat-aux
  catalogsite browse --url "/products?parts=seal&view=list"
  catalogsite browse --interactive`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !verbose {
			log.SetOutput(io.Discard)
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		client, err := newBackendClient(cfg, browseAPI)
		if err != nil {
			return err
		}
		database, err := openDatabase(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("opening local storage: %w", err)
		}
		defer database.Close()

		loc, err := urlstate.NewMemoryLocation(browseURL)
		if err != nil {
			return fmt.Errorf("parsing --url: %w", err)
		}

		ctrl := catalog.NewController(client, loc,
			urlstate.NewStoragePersister(localstore.NewStore(database)),
			catalog.Options{
				PageSize:         cfg.Catalog.PageSize,
				AutocompleteWait: cfg.Catalog.AutocompleteWait,
				MinQueryLength:   cfg.Catalog.MinQueryLength,
				Notifier:         catalog.NotifierFunc(printNotification),
			})
		defer ctrl.Close()

		ctx := cmd.Context()
		if err := ctrl.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
		if err := applyBrowseFlags(ctx, ctrl); err != nil {
			return err
		}

		if !browseInteractive {
			printView(os.Stdout, ctrl.View(), loc)
			return nil
		}
		return browseLoop(ctx, ctrl, loc, cfg.Catalog.AutocompleteWait)
	},
}

func applyBrowseFlags(ctx context.Context, ctrl *catalog.Controller) error {
	if browseSearch != "" {
		if err := ctrl.HandleSearch(ctx, browseSearch, ""); err != nil {
			return err
		}
	}
	if browseCategory != "" {
		if err := ctrl.SwitchToCategory(ctx, browseCategory); err != nil {
			return err
		}
	}
	for _, f := range browseFilters {
		group, value, ok := strings.Cut(f, "=")
		if !ok || value == "" {
			return fmt.Errorf("--filter %q: want group=value", f)
		}
		if err := ctrl.HandleFilterChange(ctx, filters.Group(group), value, true); err != nil {
			return fmt.Errorf("--filter %q: %w", f, err)
		}
	}
	if browseView != "" {
		if err := ctrl.SetViewMode(ctx, urlstate.ViewMode(browseView)); err != nil {
			return err
		}
	}
	if browsePage != 0 {
		if err := ctrl.SetPage(ctx, browsePage); err != nil {
			return err
		}
	}
	return nil
}

const (
	actionSearch   = "Search"
	actionCategory = "Switch category"
	actionFilter   = "Toggle filter"
	actionNext     = "Next page"
	actionPrev     = "Previous page"
	actionView     = "Toggle grid/list"
	actionClear    = "Clear all filters"
	actionRefresh  = "Refresh data"
	actionBack     = "Back"
	actionForward  = "Forward"
	actionQuit     = "Quit"
)

func browseLoop(ctx context.Context, ctrl *catalog.Controller, loc *urlstate.MemoryLocation, wait time.Duration) error {
	for {
		v := ctrl.View()
		printView(os.Stdout, v, loc)

		sel := promptui.Select{
			Label: "Action",
			Items: []string{actionSearch, actionCategory, actionFilter, actionNext, actionPrev,
				actionView, actionClear, actionRefresh, actionBack, actionForward, actionQuit},
			Size: 11,
		}
		_, action, err := sel.Run()
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("action selection: %w", err)
		}

		switch action {
		case actionSearch:
			q, err := (&promptui.Prompt{Label: "Search", Default: v.State.Search}).Run()
			if err != nil {
				continue
			}
			err = ctrl.HandleSearch(ctx, q, "")
			// Give the debounced autocomplete a chance to land.
			time.Sleep(wait + 200*time.Millisecond)
			if s := ctrl.View().Suggestions; len(s) > 0 {
				fmt.Printf("Suggestions: %s\n", strings.Join(s, ", "))
			}
			reportErr(err)
		case actionCategory:
			id, ok := pickCategory(v.Categories)
			if ok {
				reportErr(withHistory(loc, func() error { return ctrl.SwitchToCategory(ctx, id) }))
			}
		case actionFilter:
			group, value, checked, ok := pickFilter(v)
			if ok {
				reportErr(ctrl.HandleFilterChange(ctx, group, value, checked))
			}
		case actionNext:
			if v.Pagination.HasNext {
				reportErr(withHistory(loc, func() error { return ctrl.SetPage(ctx, v.State.Page+1) }))
			}
		case actionPrev:
			if v.State.Page > 1 {
				reportErr(withHistory(loc, func() error { return ctrl.SetPage(ctx, v.State.Page-1) }))
			}
		case actionView:
			next := urlstate.ViewList
			if v.State.View == urlstate.ViewList {
				next = urlstate.ViewGrid
			}
			reportErr(ctrl.SetViewMode(ctx, next))
		case actionClear:
			reportErr(ctrl.ClearAllFilters(ctx))
		case actionRefresh:
			reportErr(ctrl.RefreshData(ctx))
		case actionBack, actionForward:
			moved := loc.Back
			if action == actionForward {
				moved = loc.Forward
			}
			if moved() {
				_, err := ctrl.Reconcile(ctx)
				reportErr(err)
			}
		case actionQuit:
			return nil
		}
	}
}

// withHistory runs move and, when it changed the URL, records the change as
// a new history entry. The controller only ever replaces the current entry.
func withHistory(loc *urlstate.MemoryLocation, move func() error) error {
	before := loc.Query()
	err := move()
	after := loc.Query()
	if after.Encode() != before.Encode() {
		loc.Replace(before)
		loc.Navigate(after)
	}
	return err
}

// flatCategory is a category with its depth in the tree.
type flatCategory struct {
	backend.Category
	depth int
}

func flattenCategories(cats []backend.Category, depth int, out []flatCategory) []flatCategory {
	for _, c := range cats {
		out = append(out, flatCategory{Category: c, depth: depth})
		out = flattenCategories(c.Subcategories, depth+1, out)
	}
	return out
}

func pickCategory(cats []backend.Category) (string, bool) {
	flat := flattenCategories(cats, 0, nil)
	items := []string{filters.ShowAll}
	for _, c := range flat {
		items = append(items, strings.Repeat("  ", c.depth)+c.Name)
	}
	idx, _, err := (&promptui.Select{Label: "Category", Items: items, Size: 10}).Run()
	if err != nil {
		return "", false
	}
	if idx == 0 {
		return filters.ShowAll, true
	}
	return flat[idx-1].ID, true
}

func pickFilter(v catalog.View) (filters.Group, string, bool, bool) {
	_, g, err := (&promptui.Select{
		Label: "Filter group",
		Items: []string{string(filters.GroupComponents), string(filters.GroupProducts), string(filters.GroupParts)},
	}).Run()
	if err != nil {
		return "", "", false, false
	}
	group := filters.Group(g)

	var value string
	if group == filters.GroupProducts && len(v.Manufacturers) > 0 {
		_, value, err = (&promptui.Select{Label: "Manufacturer", Items: v.Manufacturers, Size: 10}).Run()
	} else {
		value, err = (&promptui.Prompt{Label: "Value"}).Run()
	}
	if err != nil || strings.TrimSpace(value) == "" {
		return "", "", false, false
	}
	value = strings.TrimSpace(value)

	selected := slices.Contains(v.State.Filters.Values(group), value)
	return group, value, !selected, true
}

func printView(w io.Writer, v catalog.View, loc *urlstate.MemoryLocation) {
	fmt.Fprintf(w, "\n%s\n", loc.String())

	var active []string
	for _, g := range filters.Groups {
		if vals := v.State.Filters.Values(g); len(vals) > 0 {
			active = append(active, fmt.Sprintf("%s=%s", g, strings.Join(vals, ",")))
		}
	}
	if v.State.Search != "" {
		fmt.Fprintf(w, "Search:  %q\n", v.State.Search)
	}
	fmt.Fprintf(w, "Filters: %s\n", strings.Join(active, "  "))

	if st := v.Status[catalog.Products]; st.Err != nil {
		fmt.Fprintf(w, "Products unavailable: %v\n", st.Err)
		return
	}
	if len(v.Products) == 0 {
		fmt.Fprintln(w, "No products match.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if v.State.View == urlstate.ViewList {
		fmt.Fprintln(tw, "ID\tNAME\tMANUFACTURER\tCOMPONENT\tPART")
		for _, p := range v.Products {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Manufacturer, p.Component, p.Part)
		}
	} else {
		const columns = 3
		for i, p := range v.Products {
			sep := "\t"
			if (i+1)%columns == 0 || i == len(v.Products)-1 {
				sep = "\n"
			}
			fmt.Fprint(tw, p.Name+sep)
		}
	}
	tw.Flush()

	pg := v.Pagination
	fmt.Fprintf(w, "Page %d of %d (%d products)\n", pg.Page, max(pg.TotalPages, 1), pg.Total)
}

func printNotification(n catalog.Notification) {
	fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", n.Severity, n.Title, n.Message)
}

func reportErr(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}

func init() {
	browseCmd.Flags().StringVar(&browseURL, "url", "/products", "Page URL whose query string holds the initial state")
	browseCmd.PersistentFlags().StringVar(&browseAPI, "api", "", "API base URL (overrides backend.api_base)")
	browseCmd.Flags().StringVar(&browseSearch, "search", "", "Search term")
	browseCmd.Flags().StringVar(&browseCategory, "category", "", "Category id to select")
	browseCmd.Flags().StringArrayVar(&browseFilters, "filter", nil, "Filter as group=value (components, products, parts); repeatable")
	browseCmd.Flags().IntVar(&browsePage, "page", 0, "Page number")
	browseCmd.Flags().StringVar(&browseView, "view", "", "View mode: grid or list")
	browseCmd.Flags().BoolVarP(&browseInteractive, "interactive", "i", false, "Interactive mode")
	rootCmd.AddCommand(browseCmd)
}
