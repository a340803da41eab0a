package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"telephony/internal/api"
	"telephony/internal/tapi"
)

var titleCaser = cases.Title(language.English)

// label renders an enum name for display: "not-registered" becomes
// "Not Registered".
func label(s fmt.Stringer) string {
	return titleCaser.String(strings.NewReplacer("-", " ", "_", " ").Replace(s.String()))
}

func formatNetworkTime(t tapi.NetworkTime) string {
	return fmt.Sprintf("%02d-%02d-%02d %02d:%02d:%02d (utc offset %d, dst %d)",
		t.Year, t.Mon, t.MDay, t.Hour, t.Min, t.Sec, t.UTCOff, t.DST)
}

func registrationFields(info *tapi.RegistrationInfo) [][2]string {
	return [][2]string{
		{"State", label(info.RegState)},
		{"Roaming", yesNo(info.Roaming())},
		{"Selection", label(info.SelectionMode)},
		{"Technology", info.Technology},
		{"Network type", strconv.Itoa(int(info.NetworkType()))},
		{"Operator", info.OperatorName},
		{"MCC/MNC", info.MCC + "/" + info.MNC},
		{"Station", info.Station},
		{"Cell ID", strconv.Itoa(info.CellID)},
		{"LAC", strconv.Itoa(info.LAC)},
		{"NITZ", formatNetworkTime(info.NITZ)},
	}
}

var cellHeaders = []string{"#", "MCC", "MNC", "LAC", "CI", "EARFCN", "PCI", "TAC", "RSSI", "RSRP", "RSRQ", "RSSNR"}

func cellRows(cells []tapi.CellIdentity) [][]string {
	rows := make([][]string, 0, len(cells))
	for i, c := range cells {
		rows = append(rows, []string{
			strconv.Itoa(i + 1), c.MCC, c.MNC,
			strconv.Itoa(c.LAC), strconv.Itoa(c.CI), strconv.Itoa(c.EARFCN),
			strconv.Itoa(c.PCI), strconv.Itoa(c.TAC),
			strconv.Itoa(c.Signal.RSSI), strconv.Itoa(c.Signal.RSRP),
			strconv.Itoa(c.Signal.RSRQ), strconv.Itoa(c.Signal.RSSNR),
		})
	}
	return rows
}

func cellAligns() []columnAlignment {
	aligns := []columnAlignment{alignRight, alignLeft, alignLeft}
	for len(aligns) < len(cellHeaders) {
		aligns = append(aligns, alignRight)
	}
	return aligns
}

func operatorRows(ops []tapi.OperatorInfo) [][]string {
	rows := make([][]string, 0, len(ops))
	for i, op := range ops {
		rows = append(rows, []string{strconv.Itoa(i + 1), op.Name, label(op.Status), op.MCC, op.MNC, op.Technology, op.ID})
	}
	return rows
}

// renderResult writes the full rendering of an operation result.
func renderResult(w io.Writer, ar *tapi.AsyncResult) {
	if ar.Status != tapi.StatusOK {
		fmt.Fprintf(w, "Slot %d: %s failed: %v\n", ar.Slot, ar.Kind, ar.Err)
		return
	}
	title := fmt.Sprintf("Slot %d %s", ar.Slot, ar.Kind)
	switch ar.Kind {
	case tapi.KindRegistrationInfo, tapi.KindNetworkState:
		if info, ok := ar.Registration(); ok {
			fmt.Fprint(w, renderFields(title, registrationFields(info)))
			return
		}
	case tapi.KindServingCellInfo:
		if cell, ok := ar.Cell(); ok {
			fmt.Fprint(w, renderTable(title, cellHeaders, cellRows([]tapi.CellIdentity{*cell}), cellAligns()))
			return
		}
	case tapi.KindNeighbouringCellInfo, tapi.KindCellInfo:
		cells := ar.Cells()
		if len(cells) == 0 {
			fmt.Fprintf(w, "Slot %d: no cells reported\n", ar.Slot)
			return
		}
		fmt.Fprint(w, renderTable(fmt.Sprintf("%s (%d)", title, ar.Count), cellHeaders, cellRows(cells), cellAligns()))
		return
	case tapi.KindScan:
		ops := ar.Operators()
		if len(ops) == 0 {
			fmt.Fprintf(w, "Slot %d: no operators found\n", ar.Slot)
			return
		}
		fmt.Fprint(w, renderTable(fmt.Sprintf("%s (%d)", title, ar.Count),
			[]string{"#", "Name", "Status", "MCC", "MNC", "Technology", "ID"},
			operatorRows(ops),
			[]columnAlignment{alignRight}))
		return
	}
	fmt.Fprintln(w, summarizeResult(ar))
}

// summarizeResult renders a result as one line, as printed for each
// notification by listen and shell.
func summarizeResult(ar *tapi.AsyncResult) string {
	prefix := fmt.Sprintf("[slot %d] %s", ar.Slot, ar.Kind)
	if ar.Status != tapi.StatusOK {
		return fmt.Sprintf("%s error: %v", prefix, ar.Err)
	}
	switch ar.Kind {
	case tapi.KindSelectAuto, tapi.KindSelectManual:
		return prefix + " done"
	case tapi.KindRadioState:
		if ar.Count != 0 {
			return prefix + " online"
		}
		return prefix + " offline"
	case tapi.KindSignalStrength:
		return fmt.Sprintf("%s %d%%", prefix, ar.Count)
	case tapi.KindNitz:
		if t, ok := ar.NetworkTime(); ok {
			return prefix + " " + formatNetworkTime(*t)
		}
	case tapi.KindNetworkState, tapi.KindRegistrationInfo:
		if info, ok := ar.Registration(); ok {
			parts := []string{label(info.RegState)}
			if info.OperatorName != "" {
				parts = append(parts, info.OperatorName)
			}
			if info.Technology != "" {
				parts = append(parts, "("+info.Technology+")")
			}
			return prefix + " " + strings.Join(parts, " ")
		}
	case tapi.KindCellInfo, tapi.KindNeighbouringCellInfo:
		return fmt.Sprintf("%s %d cells", prefix, ar.Count)
	case tapi.KindScan:
		return fmt.Sprintf("%s %d operators", prefix, ar.Count)
	case tapi.KindServingCellInfo:
		if cell, ok := ar.Cell(); ok {
			return fmt.Sprintf("%s ci=%d pci=%d rsrp=%d", prefix, cell.CI, cell.PCI, cell.Signal.RSRP)
		}
	}
	return prefix
}

// resultFromEvent rebuilds a typed result from a journaled event.
func resultFromEvent(ev api.Event) (tapi.AsyncResult, error) {
	kind := tapi.Kind(ev.EventID)
	payload, err := tapi.DecodePayload(kind, ev.Payload)
	if err != nil {
		return tapi.AsyncResult{}, err
	}
	ar := tapi.AsyncResult{
		Kind:          kind,
		Slot:          ev.Slot,
		Count:         ev.Count,
		Payload:       payload,
		CorrelationID: ev.CorrelationID,
	}
	if ev.Status != tapi.StatusOK.String() {
		ar.Status = tapi.StatusError
		ar.Err = errors.New(ev.Error)
	}
	return ar, nil
}
