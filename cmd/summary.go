package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bl4ckh401/chama/internal/cli"
	"github.com/bl4ckh401/chama/internal/pipeline"
)

var flagMembers bool

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Group balance, money flows and member standings",
	RunE:  runSummary,
}

func init() {
	summaryCmd.Flags().BoolVar(&flagMembers, "members", false, "Include the member standings table")
	rootCmd.Flags().BoolVar(&flagMembers, "members", false, "Include the member standings table")
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
	defer cancel()

	pc, err := openPortal()
	if err != nil {
		return err
	}
	defer func() { _ = pc.Close() }()

	user, client, err := signedIn(ctx, pc)
	if err != nil {
		return err
	}
	chamaID, err := chamaFor(user)
	if err != nil {
		return err
	}

	result, err := loadData(ctx, client, chamaID)
	if err != nil {
		return err
	}
	data := result.Data
	ccy := data.Chama.CurrencyOrDefault()
	now := time.Now()

	cmp := pipeline.Compare(data, flagDays, now)
	cur, prev := cmp.Current, cmp.Previous

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("%s  Last %dd", data.Chama.Name, flagDays)))
	fmt.Println()

	contrib := cli.FormatMoney(cur.Contributions, ccy)
	if prev.Contributions.IsPositive() {
		contrib += fmt.Sprintf("  (%s vs prev %dd)", cli.FormatDelta(cur.Contributions, prev.Contributions, ccy), flagDays)
	}

	rows := [][]string{
		{"Balance", cli.FormatMoney(data.Chama.Balance, ccy)},
		{"Members", cli.FormatCount(cur.ActiveMembers, "active member", "active members")},
		{"---"},
		{"Contributions", contrib},
		{"Withdrawals", cli.FormatMoney(cur.Withdrawals, ccy)},
		{"Loans issued", cli.FormatMoney(cur.LoansIssued, ccy)},
		{"Repayments", cli.FormatMoney(cur.LoanRepayments, ccy)},
		{"Fines paid", cli.FormatMoney(cur.FinesPaid, ccy)},
		{"Expenses", cli.FormatMoney(cur.Expenses, ccy)},
		{"Net flow", cli.FormatMoney(cur.NetFlow, ccy)},
		{"---"},
		{"Loans outstanding", fmt.Sprintf("%s  (%s, %d overdue)",
			cli.FormatMoney(cur.LoansOutstanding, ccy),
			cli.FormatCount(cur.OpenLoans, "open loan", "open loans"),
			cur.OverdueLoans)},
		{"Unpaid fines", fmt.Sprintf("%s  (%d)", cli.FormatMoney(cur.UnpaidFines, ccy), cur.UnpaidFineCount)},
		{"Contribution rate", cli.FormatPercent(cur.ContributionRate)},
		{"Pending proposals", fmt.Sprintf("%d", len(pipeline.PendingChanges(data.Changes)))},
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Metric", "Value"},
		Rows:    rows,
	}))

	monthly := pipeline.MonthlyContributions(data.Transactions, now.AddDate(0, -5, 0), now)
	if len(monthly) > 0 {
		values := make([]float64, len(monthly))
		peak := 0.0
		for i, m := range monthly {
			values[i] = m.Contributions.InexactFloat64()
			peak = max(peak, values[i])
		}
		fmt.Printf("  Contributions (6 months)  %s\n\n", cli.RenderSparkline(values))
		for i, m := range monthly {
			fmt.Println(cli.RenderHorizontalBar(cli.FormatMonth(m.Month), values[i], peak, 10, 30) +
				"  " + cli.FormatMoneyCompact(m.Contributions, ccy))
		}
		fmt.Println()
	}

	if flagMembers {
		standings := pipeline.MemberStandings(data)
		mrows := make([][]string, 0, len(standings))
		for _, ms := range standings {
			mrows = append(mrows, []string{
				ms.Member.Name,
				cli.FormatMoney(ms.Contributed, ccy),
				fmt.Sprintf("%.1f%%", ms.SharePercent),
				cli.FormatMoney(ms.LoanBalance, ccy),
				cli.FormatMoney(ms.UnpaidFines, ccy),
				cli.FormatRelative(ms.LastActivity, now),
			})
		}
		fmt.Print(cli.RenderTable(cli.Table{
			Title:   "Members",
			Headers: []string{"Member", "Contributed", "Share", "Loans", "Fines", "Last seen"},
			Rows:    mrows,
		}))
	}

	if err := result.Err(); err != nil {
		fmt.Fprintln(os.Stderr, cli.RenderWarning(fmt.Sprintf("%d sections could not be loaded: %v", len(result.Errors), err)))
	}
	return nil
}
