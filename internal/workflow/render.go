package workflow

import (
	"fmt"
	"strings"

	"github.com/aretw0/swapflow/internal/pipeline"
	"github.com/aretw0/swapflow/pkg/domain"
)

const explorerTxURL = "https://basescan.org/tx/"

const helpText = `Welcome to swapflow, a trading assistant for the Base network.

Getting started
- /create - Create a new wallet
- /import - Import an existing wallet

Wallet
- /wallet - Show your wallet address and type
- /deposit - Get your deposit address
- /withdraw - Withdraw ETH to another address
- /balance - Check your balances
- /history - View your recent transactions
- /export - Export your private key

Trading
- /buy - Buy tokens with ETH
- /sell - Sell tokens for ETH

Settings
- /settings - Configure slippage and gas priority
- /cancel - Abort the current operation
- /help - Show this message

Tip: create or import a wallet, deposit ETH, then start trading.`

func btn(label, callback string) domain.Button {
	return domain.Button{Label: label, Callback: callback}
}

func mainMenuButtons() [][]domain.Button {
	return [][]domain.Button{
		{btn("💰 Balance", "check_balance"), btn("📊 History", "check_history")},
		{btn("💱 Buy Token", "buy_token"), btn("💱 Sell Token", "sell_token")},
		{btn("⚙️ Settings", "open_settings"), btn("📋 Help", "help")},
	}
}

func noWalletReply() domain.Reply {
	return domain.Reply{
		Text: "You don't have a wallet yet.\n\nUse /create to create a new wallet or /import to import an existing one.",
		Buttons: [][]domain.Button{
			{btn("Create Wallet", "create_wallet"), btn("Import Wallet", "import_wallet")},
		},
	}
}

func buyTokenButtons() [][]domain.Button {
	var row []domain.Button
	for _, t := range domain.CommonTokens {
		if t.Symbol == "WETH" {
			continue
		}
		row = append(row, btn(t.Symbol, "token_"+t.Symbol))
	}
	return [][]domain.Button{row, {btn("Custom Token", "custom")}}
}

func sellTokenButtons(holdings []domain.Holding) [][]domain.Button {
	var rows [][]domain.Button
	for i := 0; i < len(holdings); i += 2 {
		row := []domain.Button{btn(holdings[i].Symbol, "sell_token_"+holdings[i].Address)}
		if i+1 < len(holdings) {
			row = append(row, btn(holdings[i+1].Symbol, "sell_token_"+holdings[i+1].Address))
		}
		rows = append(rows, row)
	}
	return append(rows, []domain.Button{btn("Custom Token", "sell_custom")})
}

func confirmButtons() [][]domain.Button {
	return [][]domain.Button{{btn("✅ Confirm", "confirm_yes"), btn("❌ Cancel", "confirm_no")}}
}

func settingsButtons() [][]domain.Button {
	return [][]domain.Button{{btn("Slippage", "settings_slippage"), btn("Gas Priority", "settings_gasPriority")}}
}

func settingsText(header string, st domain.Settings) string {
	var b strings.Builder
	b.WriteString("⚙️ Your Settings\n\n")
	if header != "" {
		b.WriteString(header + "\n\n")
	}
	fmt.Fprintf(&b, "Slippage Tolerance: %.1f%%\nGas Priority: %s", st.Slippage, gasLabel(st.GasPriority))
	return b.String()
}

func gasLabel(p domain.GasPriority) string {
	switch p {
	case domain.GasLow:
		return "Low"
	case domain.GasHigh:
		return "High"
	}
	return "Medium"
}

func units(base string, decimals int) string {
	return pipeline.FormatUnits(base, decimals)
}

func tradeSummary(fromSymbol, toSymbol, fromAmount, toAmount string, st domain.Settings) string {
	return fmt.Sprintf("🔄 Confirm Trade\n\nFrom: %s %s\nTo (estimated): %s %s\nSlippage: %.1f%%\nGas Priority: %s\n\nDo you want to proceed?",
		fromAmount, fromSymbol, toAmount, toSymbol, st.Slippage, gasLabel(st.GasPriority))
}

func txLink(hash string) string {
	return explorerTxURL + hash
}

func shortHash(hash string) string {
	if len(hash) <= 14 {
		return hash
	}
	return hash[:8] + "…" + hash[len(hash)-6:]
}

func symbolFor(address string) string {
	if domain.IsNative(address) {
		return domain.NativeSymbol
	}
	if t, ok := domain.LookupToken(address); ok {
		return t.Symbol
	}
	if len(address) > 10 {
		return address[:6] + "…" + address[len(address)-4:]
	}
	return address
}
