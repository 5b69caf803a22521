package domain

import "time"

// Action names a workflow step. The values are stored in sessions and must stay stable.
type Action string

const (
	ActionIdle Action = ""

	ActionBuyToken       Action = "buy_token"
	ActionBuyCustomToken Action = "buy_custom_token"
	ActionBuyAmount      Action = "buy_amount"
	ActionBuyConfirm     Action = "buy_confirm"

	ActionSellToken       Action = "sell_token"
	ActionSellCustomToken Action = "sell_custom_token"
	ActionSellAmount      Action = "sell_amount"
	ActionSellConfirm     Action = "sell_confirm"

	ActionWithdrawAddress Action = "withdraw_address"
	ActionWithdrawAmount  Action = "withdraw_amount"
	ActionWithdrawConfirm Action = "withdraw_confirm"

	ActionImportConfirm Action = "import_confirm"
	ActionImportWallet  Action = "import_wallet"
	ActionExportWallet  Action = "export_wallet"
	ActionCreateConfirm Action = "create_confirm"

	ActionSettingsSlippage    Action = "settings_slippage"
	ActionSettingsGasPriority Action = "settings_gasPriority"
)

// Workflow groups the steps of one multi-step operation.
type Workflow string

const (
	WorkflowNone     Workflow = ""
	WorkflowBuy      Workflow = "buy"
	WorkflowSell     Workflow = "sell"
	WorkflowWithdraw Workflow = "withdraw"
	WorkflowImport   Workflow = "import"
	WorkflowExport   Workflow = "export"
	WorkflowCreate   Workflow = "create"
	WorkflowSettings Workflow = "settings"
)

// Workflow returns the operation the step belongs to.
func (a Action) Workflow() Workflow {
	switch a {
	case ActionBuyToken, ActionBuyCustomToken, ActionBuyAmount, ActionBuyConfirm:
		return WorkflowBuy
	case ActionSellToken, ActionSellCustomToken, ActionSellAmount, ActionSellConfirm:
		return WorkflowSell
	case ActionWithdrawAddress, ActionWithdrawAmount, ActionWithdrawConfirm:
		return WorkflowWithdraw
	case ActionImportConfirm, ActionImportWallet:
		return WorkflowImport
	case ActionExportWallet:
		return WorkflowExport
	case ActionCreateConfirm:
		return WorkflowCreate
	case ActionSettingsSlippage, ActionSettingsGasPriority:
		return WorkflowSettings
	}
	return WorkflowNone
}

// Quote is an aggregator estimate captured while a swap awaits confirmation.
// The decimals are the ones used to build the quote and are reused at execution.
type Quote struct {
	OutAmount    string    `json:"outAmount"`
	EstimatedGas string    `json:"estimatedGas"`
	FromDecimals int       `json:"fromDecimals"`
	ToDecimals   int       `json:"toDecimals"`
	GasPrice     string    `json:"gasPrice"`
	QuotedAt     time.Time `json:"quotedAt"`
}

// BuyState swaps the native token into a target token.
type BuyState struct {
	FromToken    string `json:"fromToken"`
	FromSymbol   string `json:"fromSymbol"`
	FromDecimals int    `json:"fromDecimals"`
	// Balance is the native balance in base units when the flow started.
	Balance string `json:"balance"`

	ToToken    string `json:"toToken,omitempty"`
	ToSymbol   string `json:"toSymbol,omitempty"`
	ToDecimals int    `json:"toDecimals,omitempty"`

	Amount     string `json:"amount,omitempty"`
	AmountBase string `json:"amountBase,omitempty"`
	Quote      *Quote `json:"quote,omitempty"`
}

// Holding is a token the user can sell.
type Holding struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	Balance  string `json:"balance"`
}

// SellState swaps a token back into the native token.
type SellState struct {
	Holdings []Holding `json:"holdings,omitempty"`

	Token    string `json:"token,omitempty"`
	Symbol   string `json:"symbol,omitempty"`
	Decimals int    `json:"decimals,omitempty"`
	Balance  string `json:"balance,omitempty"`

	Amount     string `json:"amount,omitempty"`
	AmountBase string `json:"amountBase,omitempty"`
	Quote      *Quote `json:"quote,omitempty"`
}

// WithdrawState sends native funds to an external address.
type WithdrawState struct {
	Balance    string `json:"balance"`
	To         string `json:"to,omitempty"`
	Amount     string `json:"amount,omitempty"`
	AmountBase string `json:"amountBase,omitempty"`
}

// ImportState tracks whether replacing an existing wallet was confirmed.
type ImportState struct {
	Overwrite bool `json:"overwrite,omitempty"`
}

// ExportState marks a pending private key reveal.
type ExportState struct{}

// CreateState marks a pending wallet regeneration.
type CreateState struct{}

// SettingsState remembers which option is being edited.
type SettingsState struct {
	Option string `json:"option"`
}

// Flow is the per-workflow scratch state. At most one member is set and it
// belongs to the session's current workflow.
type Flow struct {
	Buy      *BuyState      `json:"buy,omitempty"`
	Sell     *SellState     `json:"sell,omitempty"`
	Withdraw *WithdrawState `json:"withdraw,omitempty"`
	Import   *ImportState   `json:"import,omitempty"`
	Export   *ExportState   `json:"export,omitempty"`
	Create   *CreateState   `json:"create,omitempty"`
	Settings *SettingsState `json:"settings,omitempty"`
}

// Kind reports which workflow owns the scratch state.
func (f Flow) Kind() Workflow {
	switch {
	case f.Buy != nil:
		return WorkflowBuy
	case f.Sell != nil:
		return WorkflowSell
	case f.Withdraw != nil:
		return WorkflowWithdraw
	case f.Import != nil:
		return WorkflowImport
	case f.Export != nil:
		return WorkflowExport
	case f.Create != nil:
		return WorkflowCreate
	case f.Settings != nil:
		return WorkflowSettings
	}
	return WorkflowNone
}

// Empty reports the idle shape.
func (f Flow) Empty() bool {
	return f.Kind() == WorkflowNone
}

// Clone deep-copies the scratch state.
func (f Flow) Clone() Flow {
	var c Flow
	if f.Buy != nil {
		b := *f.Buy
		b.Quote = f.Buy.Quote.clone()
		c.Buy = &b
	}
	if f.Sell != nil {
		s := *f.Sell
		s.Holdings = append([]Holding(nil), f.Sell.Holdings...)
		s.Quote = f.Sell.Quote.clone()
		c.Sell = &s
	}
	if f.Withdraw != nil {
		w := *f.Withdraw
		c.Withdraw = &w
	}
	if f.Import != nil {
		i := *f.Import
		c.Import = &i
	}
	if f.Export != nil {
		c.Export = &ExportState{}
	}
	if f.Create != nil {
		c.Create = &CreateState{}
	}
	if f.Settings != nil {
		s := *f.Settings
		c.Settings = &s
	}
	return c
}

func (q *Quote) clone() *Quote {
	if q == nil {
		return nil
	}
	c := *q
	return &c
}
