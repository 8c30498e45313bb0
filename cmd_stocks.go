package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"stock_screener/app"
	"stock_screener/middleware"
	"stock_screener/models"
	"stock_screener/services/screener"
)

var addCmd = &cobra.Command{
	Use:   "add SYMBOL...",
	Short: "Register symbols and fetch their metrics",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAdd,
}

var refreshCmd = &cobra.Command{
	Use:   "refresh [ID...]",
	Short: "Refresh stored stocks synchronously",
	Long: `Refresh the given stock ids, or every stock with --all. Each refresh
calls the provider once and reports its outcome.`,
	RunE: runRefresh,
}

var listCmd = &cobra.Command{
	Use:   "list [FILTER=VALUE...]",
	Short: "Print stocks matching the given filters",
	Long: `Print stocks matching every filter. Filters use the dashboard's query
parameter names.

Examples:
  screener list
  screener list forward_pe=20 dividend_yield=2
  screener list ma50=1 ma200=1
  screener list --preset value`,
	RunE: runList,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an admin API token signed with JWT_SECRET",
	RunE:  runToken,
}

var (
	refreshAll   bool
	listPreset   string
	tokenSubject string
	tokenTTL     time.Duration
)

func init() {
	rootCmd.AddCommand(addCmd, refreshCmd, listCmd, tokenCmd)

	refreshCmd.Flags().BoolVar(&refreshAll, "all", false, "Refresh every stored stock")
	listCmd.Flags().StringVar(&listPreset, "preset", "", "Use a predefined filter (value, dividend, uptrend, large_cap, momentum)")
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "cli", "Token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	a.Queue.Start(ctx)
	var ids []uint
	for _, symbol := range args {
		stock, err := a.Screener.CreateStock(ctx, symbol)
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", symbol, err)
		}
		ids = append(ids, stock.ID)
	}
	// wait for the queued refreshes
	a.Queue.Stop()

	stocks := make([]models.Stock, 0, len(ids))
	for _, id := range ids {
		stock, err := a.Store.Get(ctx, id)
		if err != nil {
			return err
		}
		stocks = append(stocks, *stock)
	}
	return printStocks(stocks)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	if !refreshAll && len(args) == 0 {
		return fmt.Errorf("pass stock ids or --all")
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var ids []uint
	if refreshAll {
		if ids, err = a.Store.IDs(ctx); err != nil {
			return err
		}
	} else {
		for _, arg := range args {
			id, err := strconv.ParseUint(arg, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid stock id %q", arg)
			}
			ids = append(ids, uint(id))
		}
	}

	failed := 0
	for _, id := range ids {
		if err := a.Refresher.Refresh(ctx, id); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%d: %v\n", id, err)
			continue
		}
		fmt.Printf("%d: ok\n", id)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d refreshes failed", failed, len(ids))
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	filter, err := listFilter(args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	stocks, err := a.Screener.Screen(ctx, filter)
	if err != nil {
		return err
	}
	return printStocks(stocks)
}

func listFilter(args []string) (screener.ScreenerFilter, error) {
	if listPreset != "" {
		preset, ok := screener.FindPreset(listPreset)
		if !ok {
			return screener.ScreenerFilter{}, fmt.Errorf("unknown preset %q", listPreset)
		}
		return preset.Filter, nil
	}

	values := url.Values{}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return screener.ScreenerFilter{}, fmt.Errorf("filter %q must be NAME=VALUE", arg)
		}
		values.Set(key, value)
	}
	return screener.ParseFilter(values)
}

func runToken(cmd *cobra.Command, args []string) error {
	token, err := middleware.IssueToken(cfg.JWTSecret, tokenSubject, "admin", tokenTTL)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func printStocks(stocks []models.Stock) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSYMBOL\tPRICE\tCHANGE%\tFWD P/E\tFWD EPS\tDIV%\tMA50\tMA200\tVOL(M)\tCAP(x10B)")
	for _, s := range stocks {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Symbol,
			cell(s.Price), cell(s.PercentChange), cell(s.ForwardPE), cell(s.ForwardEPS),
			cell(s.DividendYield), cell(s.MA50), cell(s.MA200), cell(s.AvgVolume), cell(s.MarketCap))
	}
	return w.Flush()
}

func cell(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
