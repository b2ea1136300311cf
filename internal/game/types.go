package game

import (
	"fmt"
	"strings"
)

// Kind is the table format
type Kind int

const (
	Cash Kind = iota
	Tournament
)

func (k Kind) String() string {
	switch k {
	case Cash:
		return "cash"
	case Tournament:
		return "tournament"
	default:
		return "unknown"
	}
}

// ParseKind accepts "cash" or "tournament"
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "cash", "":
		return Cash, nil
	case "tournament":
		return Tournament, nil
	}
	return 0, fmt.Errorf("unknown table kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	*k = v
	return err
}

// Phase is the table's position in the hand lifecycle
type Phase int

const (
	Waiting Phase = iota
	Preflop
	Flop
	Turn
	River
	Showdown
	Finished
)

var phaseNames = [...]string{"waiting", "preflop", "flop", "turn", "river", "showdown", "finished"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Phase) UnmarshalText(b []byte) error {
	for i, name := range phaseNames {
		if name == string(b) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

// Betting reports whether seats can act in this phase
func (p Phase) Betting() bool {
	return p >= Preflop && p <= River
}

// Action represents a player action
type Action int

const (
	Fold Action = iota
	Check
	Call
	Raise
	AllIn
)

func (a Action) String() string {
	switch a {
	case Fold:
		return "fold"
	case Check:
		return "check"
	case Call:
		return "call"
	case Raise:
		return "raise"
	case AllIn:
		return "allin"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// ParseAction converts a wire action name into an Action
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(s) {
	case "fold":
		return Fold, nil
	case "check":
		return Check, nil
	case "call":
		return Call, nil
	case "raise", "bet":
		return Raise, nil
	case "allin", "all-in", "all_in":
		return AllIn, nil
	}
	return 0, invalid(CodeInvalidAction, "unknown action %q", s)
}

func (a Action) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Action) UnmarshalText(b []byte) error {
	v, err := ParseAction(string(b))
	*a = v
	return err
}

// Blinds are the forced bets in chips
type Blinds struct {
	Small int64 `json:"small"`
	Big   int64 `json:"big"`
}
