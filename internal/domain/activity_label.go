package domain

// ActivityLabel is the semantic label of an investment ledger line.
type ActivityLabel string

const (
	LabelBuy          ActivityLabel = "Buy"
	LabelSell         ActivityLabel = "Sell"
	LabelDividend     ActivityLabel = "Dividend"
	LabelInterest     ActivityLabel = "Interest"
	LabelFee          ActivityLabel = "Fee"
	LabelSweepIn      ActivityLabel = "Sweep In"
	LabelSweepOut     ActivityLabel = "Sweep Out"
	LabelReinvestment ActivityLabel = "Reinvestment"
	LabelExchange     ActivityLabel = "Exchange"
	LabelContribution ActivityLabel = "Contribution"
	LabelWithdrawal   ActivityLabel = "Withdrawal"
	LabelTransfer     ActivityLabel = "Transfer"
	LabelOther        ActivityLabel = "Other"
)

// ActivityLabels lists every label in display order.
var ActivityLabels = []ActivityLabel{
	LabelBuy, LabelSell, LabelDividend, LabelInterest, LabelFee, LabelSweepIn, LabelSweepOut,
	LabelReinvestment, LabelExchange, LabelContribution, LabelWithdrawal, LabelTransfer, LabelOther,
}

func (l ActivityLabel) Valid() bool {
	for _, v := range ActivityLabels {
		if v == l {
			return true
		}
	}
	return false
}

func (l ActivityLabel) Ptr() *ActivityLabel {
	return &l
}
