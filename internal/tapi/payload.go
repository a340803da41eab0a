package tapi

import (
	"encoding/json"
	"fmt"
)

// DecodePayload restores the typed payload of kind from its JSON form, as
// written by the event journal. Kinds that carry no payload decode to nil.
func DecodePayload(kind Kind, data []byte) (any, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var target any
	switch kind {
	case KindRegistrationInfo, KindNetworkState:
		target = new(RegistrationInfo)
	case KindServingCellInfo:
		target = new(CellIdentity)
	case KindNitz:
		target = new(NetworkTime)
	case KindNeighbouringCellInfo, KindCellInfo:
		target = new([]CellIdentity)
	case KindScan:
		target = new([]OperatorInfo)
	default:
		return nil, nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrProtocolMismatch, kind, err)
	}
	switch p := target.(type) {
	case *[]CellIdentity:
		return *p, nil
	case *[]OperatorInfo:
		return *p, nil
	}
	return target, nil
}
