package notification

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/raykavin/coinsentry/pkg/alert"
	"github.com/raykavin/coinsentry/pkg/core"
	"github.com/raykavin/coinsentry/pkg/sniper"
	"github.com/raykavin/coinsentry/pkg/strategy"
)

// FormatPriceAlert renders the trigger message for a price alert
func FormatPriceAlert(a *alert.Alert, price float64) string {
	return fmt.Sprintf("🔔 Price alert triggered\n%s on %s is %s %.8g (current: %.8g)",
		a.Symbol, a.Exchange, a.Condition, a.TargetPrice, price)
}

// FormatSignal renders the trigger message for a strategy signal
func FormatSignal(s *strategy.Strategy, signal core.Signal) string {
	var emoji string
	switch signal {
	case core.SignalBuy:
		emoji = "📈"
	case core.SignalSell:
		emoji = "📉"
	default:
		emoji = "⏸"
	}

	return fmt.Sprintf("%s %s signal\n%s (%s) on %s",
		emoji, strings.ToUpper(signal.String()), s.Name, s.Symbol, s.Exchange)
}

// FormatSniperMatch renders the trigger message for a sniper alert
func FormatSniperMatch(a *sniper.Alert, t sniper.Token) string {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "🎯 Sniper alert\n%s (%s)", t.Name, t.Symbol)

	if t.Price != nil {
		fmt.Fprintf(sb, "\nPrice: %.8g", *t.Price)
	}
	if t.MarketCap != nil {
		fmt.Fprintf(sb, "\nMarket cap: %.0f", *t.MarketCap)
	}
	if a.AutoBuy {
		fmt.Fprintf(sb, "\nAuto-buy: %.2f USD", a.AutoBuyAmount)
	}

	return sb.String()
}

// FormatTrending renders the trending tokens digest as a text table
func FormatTrending(tokens []sniper.Token) string {
	if len(tokens) == 0 {
		return "No trending tokens yet."
	}

	tableString := &strings.Builder{}
	tableString.WriteString("🔥 Trending tokens\n")

	table := tablewriter.NewWriter(tableString)
	table.SetHeader([]string{"#", "Token", "Price", "24h %"})

	for i, t := range tokens {
		price := "-"
		if t.Price != nil {
			price = fmt.Sprintf("%.8g", *t.Price)
		}
		change := "-"
		if t.PriceChange24h != nil {
			change = fmt.Sprintf("%+.1f", *t.PriceChange24h)
		}
		table.Append([]string{strconv.Itoa(i + 1), t.Symbol, price, change})
	}

	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
	})
	table.Render()

	return tableString.String()
}

// FormatNewListings renders the new listings digest as a text table
func FormatNewListings(tokens []sniper.Token) string {
	if len(tokens) == 0 {
		return "No new listings."
	}

	tableString := &strings.Builder{}
	tableString.WriteString("🆕 New listings\n")

	table := tablewriter.NewWriter(tableString)
	table.SetHeader([]string{"Token", "Chain", "Listed"})

	for _, t := range tokens {
		chain := t.Chain
		if chain == "" {
			chain = "-"
		}
		table.Append([]string{t.Symbol, chain, t.CreatedAt.Format("2006-01-02")})
	}

	table.Render()

	return tableString.String()
}
