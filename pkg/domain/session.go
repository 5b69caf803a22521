package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// GasPriority selects how aggressively transactions are priced.
type GasPriority string

const (
	GasLow    GasPriority = "low"
	GasMedium GasPriority = "medium"
	GasHigh   GasPriority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p GasPriority) Valid() bool {
	switch p {
	case GasLow, GasMedium, GasHigh:
		return true
	}
	return false
}

// SlippageChoices are the only slippage percentages a user can select.
var SlippageChoices = []float64{0.5, 1.0, 2.0}

// Settings holds the per-user trading preferences.
type Settings struct {
	Slippage    float64     `json:"slippage"`
	GasPriority GasPriority `json:"gasPriority"`
}

// DefaultSettings returns the settings applied on first contact.
func DefaultSettings() Settings {
	return Settings{Slippage: 1.0, GasPriority: GasMedium}
}

// Complete reports whether both fields are initialized.
func (s Settings) Complete() bool {
	return s.Slippage > 0 && s.GasPriority.Valid()
}

// ParseSlippage accepts only one of SlippageChoices.
func ParseSlippage(v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid slippage %q", v)
	}
	for _, c := range SlippageChoices {
		if c == f {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unsupported slippage %q", v)
}

// Identity is the external identity carried by an inbound request.
type Identity struct {
	FID         string `json:"fid,omitempty"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// Present reports whether the request carried an identity.
func (i Identity) Present() bool {
	return strings.TrimSpace(i.FID) != ""
}

// UserID is the stable user identifier derived from the identity.
func (i Identity) UserID() string {
	return strings.TrimSpace(i.FID)
}

// GuestUserID builds the identifier used for sessions without an identity.
func GuestUserID(now time.Time) string {
	return fmt.Sprintf("guest_%d", now.UnixMilli())
}

// Session is the server-side record that carries continuity between requests.
type Session struct {
	ID     string `json:"id"`
	UserID string `json:"userId,omitempty"`
	Guest  bool   `json:"guest,omitempty"`

	FID         string `json:"fid,omitempty"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"displayName,omitempty"`

	// CurrentAction names the active workflow step. Empty means idle.
	CurrentAction Action `json:"currentAction,omitempty"`
	// Flow is the scratch state owned by CurrentAction's workflow.
	Flow Flow `json:"tempData"`

	Settings      Settings `json:"settings"`
	WalletAddress string   `json:"walletAddress,omitempty"`

	// StepAt records when CurrentAction was last entered.
	StepAt    time.Time `json:"stepAt,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Sealed carries the encrypted record when the session is stored as an envelope.
	Sealed string `json:"__encrypted__,omitempty"`
}

// NewSession creates an idle session with default settings.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Settings:  DefaultSettings(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Idle reports whether no workflow is in flight.
func (s *Session) Idle() bool {
	return s.CurrentAction == ActionIdle
}

// Bound reports whether an identified (non guest) user owns the session.
func (s *Session) Bound() bool {
	return s.UserID != "" && !s.Guest
}

// Begin enters a workflow step together with its scratch state.
func (s *Session) Begin(action Action, flow Flow, now time.Time) {
	s.CurrentAction = action
	s.Flow = flow
	s.StepAt = now
}

// Advance moves to another step of the same workflow, keeping its scratch state.
// Moving into a different workflow drops the scratch state.
func (s *Session) Advance(action Action, now time.Time) {
	if action.Workflow() != s.CurrentAction.Workflow() {
		s.Flow = Flow{}
	}
	s.CurrentAction = action
	s.StepAt = now
}

// Reset returns the session to idle.
func (s *Session) Reset() {
	s.CurrentAction = ActionIdle
	s.Flow = Flow{}
	s.StepAt = time.Time{}
}

// Stale reports whether the active step has been waiting longer than timeout.
func (s *Session) Stale(now time.Time, timeout time.Duration) bool {
	if s.Idle() || timeout <= 0 || s.StepAt.IsZero() {
		return false
	}
	return now.Sub(s.StepAt) > timeout
}

// EnsureSettings fills in defaults for any uninitialized setting.
func (s *Session) EnsureSettings() {
	def := DefaultSettings()
	if s.Settings.Slippage <= 0 {
		s.Settings.Slippage = def.Slippage
	}
	if !s.Settings.GasPriority.Valid() {
		s.Settings.GasPriority = def.GasPriority
	}
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Flow = s.Flow.Clone()
	return &c
}
