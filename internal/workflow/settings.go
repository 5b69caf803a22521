package workflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/swapflow/pkg/domain"
)

func (s *Service) settings(ctx context.Context, req *Request) (domain.Reply, error) {
	if err := requireUser(req); err != nil {
		return domain.Reply{}, err
	}
	return domain.Reply{Text: settingsText("", req.Session.Settings), Buttons: settingsButtons()}, nil
}

// settingsOption opens the editor for one setting.
func (s *Service) settingsOption(action domain.Action) Handler {
	return func(ctx context.Context, req *Request) (domain.Reply, error) {
		if err := requireUser(req); err != nil {
			return domain.Reply{}, err
		}
		back := []domain.Button{btn("⬅️ Back", "back")}

		if action == domain.ActionSettingsSlippage {
			req.Session.Begin(action, domain.Flow{Settings: &domain.SettingsState{Option: "slippage"}}, req.Now)
			var row []domain.Button
			for _, c := range domain.SlippageChoices {
				v := strconv.FormatFloat(c, 'f', 1, 64)
				row = append(row, btn(v+"%", "slippage_"+v))
			}
			return domain.Reply{
				Text:    fmt.Sprintf("Select your slippage tolerance.\n\nCurrent: %.1f%%", req.Session.Settings.Slippage),
				Buttons: [][]domain.Button{row, back},
			}, nil
		}

		req.Session.Begin(action, domain.Flow{Settings: &domain.SettingsState{Option: "gasPriority"}}, req.Now)
		var row []domain.Button
		for _, p := range []domain.GasPriority{domain.GasLow, domain.GasMedium, domain.GasHigh} {
			row = append(row, btn(gasLabel(p), "gasPriority_"+string(p)))
		}
		return domain.Reply{
			Text:    fmt.Sprintf("Select your gas priority.\n\nCurrent: %s", gasLabel(req.Session.Settings.GasPriority)),
			Buttons: [][]domain.Button{row, back},
		}, nil
	}
}

func (s *Service) settingsChoice(ctx context.Context, req *Request) (domain.Reply, error) {
	name := req.Event.Name
	if name == "back" {
		req.Session.Reset()
		return s.settings(ctx, req)
	}
	if v, ok := strings.CutPrefix(name, "slippage_"); ok {
		return s.setSlippage(ctx, req, v)
	}
	if v, ok := strings.CutPrefix(name, "gasPriority_"); ok {
		return s.setGasPriority(ctx, req, v)
	}
	if v, ok := strings.CutPrefix(name, "gas_"); ok {
		return s.setGasPriority(ctx, req, v)
	}
	return domain.Reply{}, domain.UserInput("Please pick one of the options.")
}

func (s *Service) setSlippage(ctx context.Context, req *Request, value string) (domain.Reply, error) {
	if err := requireUser(req); err != nil {
		return domain.Reply{}, err
	}
	v, err := domain.ParseSlippage(value)
	if err != nil {
		return domain.Reply{}, domain.UserInput("Invalid slippage value. Choose 0.5%, 1.0% or 2.0%.")
	}
	next := req.Session.Settings
	next.Slippage = v
	if err := s.saveSettings(ctx, req, next); err != nil {
		return domain.Reply{}, err
	}
	return domain.Reply{
		Text:    settingsText(fmt.Sprintf("✅ Slippage set to %.1f%%", v), next),
		Buttons: settingsButtons(),
	}, nil
}

func (s *Service) setGasPriority(ctx context.Context, req *Request, value string) (domain.Reply, error) {
	if err := requireUser(req); err != nil {
		return domain.Reply{}, err
	}
	p := domain.GasPriority(strings.ToLower(strings.TrimSpace(value)))
	if !p.Valid() {
		return domain.Reply{}, domain.UserInput("Invalid gas priority. Choose Low, Medium or High.")
	}
	next := req.Session.Settings
	next.GasPriority = p
	if err := s.saveSettings(ctx, req, next); err != nil {
		return domain.Reply{}, err
	}
	return domain.Reply{
		Text:    settingsText(fmt.Sprintf("✅ Gas priority set to %s", gasLabel(p)), next),
		Buttons: settingsButtons(),
	}, nil
}

func (s *Service) saveSettings(ctx context.Context, req *Request, next domain.Settings) error {
	if err := s.accounts.SaveSettings(ctx, req.Session.UserID, next); err != nil {
		return domain.RetryableUpstream("Could not save your settings. Please try again.", err)
	}
	req.Session.Settings = next
	req.Session.Reset()
	return nil
}
