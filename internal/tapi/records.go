package tapi

// Field capacities. A wire string longer than its field's capacity leaves the
// field unchanged.
const (
	NetworkInfoMaxLen  = 100
	OperatorNameMaxLen = 63
	MCCMaxLen          = 3
	MNCMaxLen          = 3
)

// NetworkTime is the network-provided time (NITZ) in wire field order.
type NetworkTime struct {
	Sec    int
	Min    int
	Hour   int
	MDay   int
	Mon    int
	Year   int
	DST    int
	UTCOff int
}

// RegistrationInfo describes the current network registration of a slot.
type RegistrationInfo struct {
	RegState      RegistrationState
	SelectionMode SelectionMode
	Technology    string
	OperatorName  string
	MCC           string
	MNC           string
	Station       string
	CellID        int
	LAC           int
	NITZ          NetworkTime
}

// SignalStrength carries the radio measurements reported for a cell.
type SignalStrength struct {
	RSSI  int
	RSSNR int
	RSRQ  int
	RSRP  int
}

// CellIdentity describes a serving or neighbouring cell.
type CellIdentity struct {
	MCC    string
	MNC    string
	LAC    int
	CI     int
	EARFCN int
	PCI    int
	TAC    int
	Signal SignalStrength
}

// OperatorInfo is one entry of a network scan. ID is the operator's object
// path and is what manual selection registers against.
type OperatorInfo struct {
	ID         string
	Name       string
	Status     OperatorStatus
	MCC        string
	MNC        string
	Technology string
}

// detach returns a copy of payload that does not share storage with records
// the loop is about to release.
func detach(payload any) any {
	switch p := payload.(type) {
	case *RegistrationInfo:
		if p == nil {
			return nil
		}
		c := *p
		return &c
	case *CellIdentity:
		if p == nil {
			return nil
		}
		c := *p
		return &c
	case *NetworkTime:
		if p == nil {
			return nil
		}
		c := *p
		return &c
	case []CellIdentity:
		return append([]CellIdentity(nil), p...)
	case []OperatorInfo:
		return append([]OperatorInfo(nil), p...)
	default:
		return payload
	}
}

// Registration returns the registration payload, if any.
func (ar *AsyncResult) Registration() (*RegistrationInfo, bool) {
	p, ok := ar.Payload.(*RegistrationInfo)
	return p, ok && p != nil
}

// Cell returns a single-cell payload, if any.
func (ar *AsyncResult) Cell() (*CellIdentity, bool) {
	p, ok := ar.Payload.(*CellIdentity)
	return p, ok && p != nil
}

// Cells returns a cell list payload.
func (ar *AsyncResult) Cells() []CellIdentity {
	p, _ := ar.Payload.([]CellIdentity)
	return p
}

// Operators returns an operator list payload.
func (ar *AsyncResult) Operators() []OperatorInfo {
	p, _ := ar.Payload.([]OperatorInfo)
	return p
}

// NetworkTime returns a NITZ payload, if any.
func (ar *AsyncResult) NetworkTime() (*NetworkTime, bool) {
	p, ok := ar.Payload.(*NetworkTime)
	return p, ok && p != nil
}
