package endpoint

import (
	"errors"
	"strings"

	"github.com/pion/stun/v3"
)

// TransactionID is the 96-bit STUN transaction id used to correlate one
// request with its matching response (stun.TransactionIDSize is 12 bytes).
type TransactionID = [stun.TransactionIDSize]byte

var errNoUsername = errors.New("endpoint: STUN message carries no USERNAME attribute")

// decodeStun parses a datagram the classify package has already identified
// as STUN into a pion stun.Message. This is the one place the endpoint
// performs real wire-level parsing rather than pure classification — the
// USERNAME attribute and transaction id, per the endpoint's STUN contract.
func decodeStun(b []byte) (*stun.Message, error) {
	raw := make([]byte, len(b))
	copy(raw, b)
	m := &stun.Message{Raw: raw}
	if err := m.Decode(); err != nil {
		return nil, err
	}
	return m, nil
}

func isStunRequest(m *stun.Message) bool {
	return m.Type.Class == stun.ClassRequest
}

func isStunResponse(m *stun.Message) bool {
	return m.Type.Class == stun.ClassSuccessResponse || m.Type.Class == stun.ClassErrorResponse
}

// stunUsernameHalves extracts the raw USERNAME attribute and splits it on
// ICE's ":" separator. For a message this endpoint receives, the first half
// names our own local ufrag (the dispatch table key); for one this endpoint
// is about to send, the second half is our own local ufrag — see callers
// for which half they consult.
func stunUsernameHalves(m *stun.Message) (first, second string, err error) {
	raw, getErr := m.Get(stun.AttrUsername)
	if getErr != nil {
		return "", "", errNoUsername
	}
	s := string(raw)
	if idx := strings.IndexByte(s, ':'); idx >= 0 {
		return s[:idx], s[idx+1:], nil
	}
	return s, "", nil
}
