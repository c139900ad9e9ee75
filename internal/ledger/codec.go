package ledger

import (
	"encoding/json"
	"fmt"
)

// Marshal encodes bets as a JSON array in the given order
func Marshal(bets []Bet) ([]byte, error) {
	if bets == nil {
		bets = []Bet{}
	}
	b, err := json.Marshal(bets)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ledger: %w", err)
	}
	return b, nil
}

// Unmarshal decodes a JSON array of bets
func Unmarshal(data []byte) ([]Bet, error) {
	var bets []Bet
	if err := json.Unmarshal(data, &bets); err != nil {
		return nil, fmt.Errorf("failed to decode ledger: %w", err)
	}
	return bets, nil
}
