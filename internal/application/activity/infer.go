package activity

import (
	"regexp"
	"strings"

	"ledgersync-backend/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	retirementPattern = regexp.MustCompile(`\b(401\(?K|403\(?B|457\(?B)|\b(RETIREMENT|TSP|THRIFT SAVINGS|NETBENEFITS|EMPOWER|TIAA|VOYA|PRINCIPAL)\b`)

	sweepPattern      = regexp.MustCompile(`\b(SWEEP|SETTLEMENT|CASH SWP|BANK DEPOSIT PROGRAM)\b`)
	moneyMarketTicker = regexp.MustCompile(`\b(SPAXX|FDRXX|FZFXX|SPRXX|SWVXX|SNVXX|SNOXX|VMFXX|VMMXX|VUSXX|TTTXX|FTEXX)\b`)

	cashOnly = regexp.MustCompile(`^CASH$`)

	fundPattern = regexp.MustCompile(`\b(INDEX|FUND|FUNDS|ETF|TARGET DATE|TARGET RETIREMENT|TOTAL MARKET|TOTAL STOCK|S&P 500|500|VANGUARD|FIDELITY|SCHWAB|ISHARES|SPDR|BLACKROCK|T\. ?ROWE|AMERICAN FUNDS)\b`)
	fundTicker  = regexp.MustCompile(`\b(VOO|VTI|VTSAX|VFIAX|VFIFX|VTTSX|VXUS|VTIAX|BND|VBTLX|FXAIX|FSKAX|FZROX|FTIHX|SWPPX|SWTSX|SCHB|SCHD|SPY|IVV|QQQ|ITOT|AGG)\b`)
)

// smallInterestLimit is the absolute amount below which a money-market line is read as interest.
var smallInterestLimit = decimal.NewFromInt(5)

// IsRetirementAccount reports whether the account name or subtype names a retirement plan.
func IsRetirementAccount(acct *domain.Account) bool {
	if acct == nil {
		return false
	}
	return retirementPattern.MatchString(strings.ToUpper(acct.Name + " " + acct.Subtype))
}

func isMoneyMarket(name string) bool {
	if moneyMarketTicker.MatchString(name) {
		return true
	}
	return strings.Contains(name, "MONEY MARKET")
}

// InferFromDescription labels an investment transaction from its name and signed amount
// (positive is cash leaving the account). acct may be nil. It returns nil when no rule applies.
func InferFromDescription(name string, amount decimal.Decimal, acct *domain.Account) *domain.ActivityLabel {
	n := strings.ToUpper(strings.TrimSpace(name))
	if n == "" {
		return nil
	}

	mmSweep := strings.Contains(n, "MONEY MARKET") && !strings.Contains(n, "INVESTOR")
	if sweepPattern.MatchString(n) || mmSweep || moneyMarketTicker.MatchString(n) {
		if amount.IsNegative() {
			return domain.LabelSweepIn.Ptr()
		}
		return domain.LabelSweepOut.Ptr()
	}

	// Only money-market fund lines that are not sweeps reach here.
	if isMoneyMarket(n) && amount.Abs().LessThan(smallInterestLimit) && !amount.IsZero() {
		return domain.LabelInterest.Ptr()
	}

	switch {
	case strings.Contains(n, "DIVIDEND"), strings.Contains(n, "DISTRIBUTION"):
		return domain.LabelDividend.Ptr()
	case cashOnly.MatchString(n) && amount.IsNegative():
		return domain.LabelDividend.Ptr()
	case strings.Contains(n, "INTEREST"):
		return domain.LabelInterest.Ptr()
	case strings.Contains(n, "FEE"), strings.Contains(n, "CHARGE"):
		return domain.LabelFee.Ptr()
	case strings.Contains(n, "REINVEST"):
		return domain.LabelReinvestment.Ptr()
	case strings.Contains(n, "EXCHANGE"), strings.Contains(n, "CONVERSION"):
		return domain.LabelExchange.Ptr()
	case strings.Contains(n, "CONTRIBUTION"), strings.Contains(n, "DEPOSIT"):
		return domain.LabelContribution.Ptr()
	case strings.Contains(n, "WITHDRAWAL"), strings.Contains(n, "DISBURSEMENT"):
		return domain.LabelWithdrawal.Ptr()
	}

	if fundPattern.MatchString(n) || fundTicker.MatchString(n) {
		switch {
		case amount.IsNegative() && IsRetirementAccount(acct):
			return domain.LabelContribution.Ptr()
		case amount.IsPositive():
			return domain.LabelBuy.Ptr()
		case amount.IsNegative():
			return domain.LabelSell.Ptr()
		}
	}
	return nil
}
