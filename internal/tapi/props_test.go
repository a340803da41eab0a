package tapi

import (
	"strings"
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestParseNetworkTime(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  NetworkTime
	}{
		{
			name:  "all fields",
			input: "5,10,14,23,6,24,0,480",
			want:  NetworkTime{Sec: 5, Min: 10, Hour: 14, MDay: 23, Mon: 6, Year: 24, DST: 0, UTCOff: 480},
		},
		{
			name:  "fewer tokens leave trailing zero",
			input: "1,2,3",
			want:  NetworkTime{Sec: 1, Min: 2, Hour: 3},
		},
		{
			name:  "excess tokens ignored",
			input: "1,2,3,4,5,6,7,8,9,10",
			want:  NetworkTime{Sec: 1, Min: 2, Hour: 3, MDay: 4, Mon: 5, Year: 6, DST: 7, UTCOff: 8},
		},
		{
			name:  "negative offset and junk",
			input: "0,0,0,1,1,25,1,-300x",
			want:  NetworkTime{MDay: 1, Mon: 1, Year: 25, DST: 1, UTCOff: -300},
		},
		{
			name:  "non numeric token is zero",
			input: "a,7",
			want:  NetworkTime{Sec: 0, Min: 7},
		},
		{
			name:  "empty tokens skipped",
			input: "1,,2",
			want:  NetworkTime{Sec: 1, Min: 2},
		},
		{
			name:  "empty string",
			input: "",
			want:  NetworkTime{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseNetworkTime(tt.input); got != tt.want {
				t.Fatalf("parseNetworkTime(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestRegistrationDecodeIgnoresUnknownKeys(t *testing.T) {
	bag := PropertyBag{
		{Key: "Name", Value: dbus.MakeVariant("Operator")},
		{Key: "Vendor", Value: dbus.MakeVariant("x")},
		{Key: "CellId", Value: dbus.MakeVariant(uint32(4242))},
		{Key: "Frobnicate", Value: dbus.MakeVariant(int32(9))},
		{Key: "Status", Value: dbus.MakeVariant("roaming")},
	}
	got := registrationSetters.decode(bag)
	want := RegistrationInfo{OperatorName: "Operator", CellID: 4242, RegState: RegRoaming}
	if got != want {
		t.Fatalf("decode = %+v, want %+v", got, want)
	}
	if !got.Roaming() {
		t.Fatal("expected roaming registration")
	}
}

func TestStringFieldOverflowLeavesFieldUnchanged(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		capacity int
		field    func(RegistrationInfo) string
	}{
		{name: "mcc", key: "MobileCountryCode", capacity: MCCMaxLen, field: func(r RegistrationInfo) string { return r.MCC }},
		{name: "mnc", key: "MobileNetworkCode", capacity: MNCMaxLen, field: func(r RegistrationInfo) string { return r.MNC }},
		{name: "operator name", key: "Name", capacity: OperatorNameMaxLen, field: func(r RegistrationInfo) string { return r.OperatorName }},
		{name: "technology", key: "Technology", capacity: NetworkInfoMaxLen, field: func(r RegistrationInfo) string { return r.Technology }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fits := strings.Repeat("9", tt.capacity)
			if got := tt.field(registrationSetters.decode(PropertyBag{{Key: tt.key, Value: dbus.MakeVariant(fits)}})); got != fits {
				t.Fatalf("value at capacity: got %q want %q", got, fits)
			}
			over := strings.Repeat("9", tt.capacity+1)
			if got := tt.field(registrationSetters.decode(PropertyBag{{Key: tt.key, Value: dbus.MakeVariant(over)}})); got != "" {
				t.Fatalf("oversized value should be dropped, got %q", got)
			}
		})
	}

	// A later oversized duplicate keeps the earlier value.
	bag := PropertyBag{
		{Key: "MobileCountryCode", Value: dbus.MakeVariant("460")},
		{Key: "MobileCountryCode", Value: dbus.MakeVariant("4601")},
	}
	if got := registrationSetters.decode(bag).MCC; got != "460" {
		t.Fatalf("expected prior value to survive overflow, got %q", got)
	}
}

func TestDuplicateKeysLastWins(t *testing.T) {
	bag := PropertyBag{
		{Key: "LocationAreaCode", Value: dbus.MakeVariant(uint16(1))},
		{Key: "LocationAreaCode", Value: dbus.MakeVariant(uint16(2))},
	}
	if got := registrationSetters.decode(bag).LAC; got != 2 {
		t.Fatalf("LAC = %d, want 2", got)
	}
}

func TestWrongTypesIgnored(t *testing.T) {
	bag := PropertyBag{
		{Key: "Name", Value: dbus.MakeVariant(int32(5))},
		{Key: "CellId", Value: dbus.MakeVariant("not a number")},
	}
	if got := registrationSetters.decode(bag); got != (RegistrationInfo{}) {
		t.Fatalf("expected zero record, got %+v", got)
	}
}

func TestDecodeCellFillsSignal(t *testing.T) {
	bag := BagFromMap(map[string]dbus.Variant{
		"MobileCountryCode":              dbus.MakeVariant("460"),
		"MobileNetworkCode":              dbus.MakeVariant("00"),
		"CellId":                         dbus.MakeVariant(uint32(123456)),
		"PhysicalCellId":                 dbus.MakeVariant(uint16(301)),
		"TrackingAreaCode":               dbus.MakeVariant(uint16(9001)),
		"EARFCN":                         dbus.MakeVariant(uint16(1650)),
		"Strength":                       dbus.MakeVariant(byte(31)),
		"SingalToNoiseRatio":             dbus.MakeVariant(int32(12)),
		"ReferenceSignalReceivedQuality": dbus.MakeVariant(int32(-10)),
		"ReferenceSignalReceivedPower":   dbus.MakeVariant(int32(-95)),
	})
	got := decodeCell(bag)
	want := CellIdentity{
		MCC: "460", MNC: "00", CI: 123456, PCI: 301, TAC: 9001, EARFCN: 1650,
		Signal: SignalStrength{RSSI: 31, RSSNR: 12, RSRQ: -10, RSRP: -95},
	}
	if got != want {
		t.Fatalf("decodeCell = %+v, want %+v", got, want)
	}
}

func TestOperatorDecode(t *testing.T) {
	bag := BagFromMap(map[string]dbus.Variant{
		"Name":              dbus.MakeVariant("China Mobile"),
		"Status":            dbus.MakeVariant("current"),
		"MobileCountryCode": dbus.MakeVariant("460"),
		"MobileNetworkCode": dbus.MakeVariant("00"),
		"Technologies":      dbus.MakeVariant([]string{"gsm", "lte"}),
	})
	got := operatorSetters.decode(bag)
	want := OperatorInfo{Name: "China Mobile", Status: OperatorCurrent, MCC: "460", MNC: "00", Technology: "gsm,lte"}
	if got != want {
		t.Fatalf("operator decode = %+v, want %+v", got, want)
	}
}

func TestBagFromMapSortsKeys(t *testing.T) {
	bag := BagFromMap(map[string]dbus.Variant{"b": dbus.MakeVariant(1), "a": dbus.MakeVariant(2)})
	if len(bag) != 2 || bag[0].Key != "a" || bag[1].Key != "b" {
		t.Fatalf("unexpected bag order: %+v", bag)
	}
}
