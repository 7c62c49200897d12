package game

import (
	"encoding/json"
	"fmt"
)

// Encode serializes the full session state. Sets become sorted arrays and
// mappings become objects, so equal states encode to equal bytes.
func Encode(state State) ([]byte, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode %s state: %w", state.Kind(), err)
	}
	return data, nil
}

// Decode restores a session of the given kind. Set and map fields are never nil afterwards.
func Decode(kind Kind, data []byte) (State, error) {
	var state State
	switch kind {
	case KindHangman:
		state = &Hangman{}
	case KindTicTacToe:
		state = &TicTacToe{}
	case KindWordGame:
		state = &WordGame{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("decode %s state: %w", kind, err)
	}
	state.normalize()
	return state, nil
}
