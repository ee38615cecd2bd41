// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

package seymour

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// SystemInfo is the controller identity returned by CmdSystemInfo.
type SystemInfo struct {
	ProtocolVersion string  `json:"protocol_version" yaml:"protocol_version" cbor:"protocol_version"`
	SerialNumber    string  `json:"serial_number" yaml:"serial_number" cbor:"serial_number"`
	ScreenModel     string  `json:"screen_model" yaml:"screen_model" cbor:"screen_model"`
	Width           float64 `json:"width" yaml:"width" cbor:"width"`
	Height          float64 `json:"height" yaml:"height" cbor:"height"`
	MaskIDs         string  `json:"mask_ids" yaml:"mask_ids" cbor:"mask_ids"`
}

// Motors returns the motor letters in mask order. Both "T,B,L,R" and
// "TBLR" spellings are accepted.
func (s SystemInfo) Motors() []string {
	return ParseMaskIDs(s.MaskIDs)
}

// ParseMaskIDs splits a mask id list into upper-case motor letters.
func ParseMaskIDs(maskIDs string) []string {
	var motors []string
	for _, r := range maskIDs {
		if r == ',' || unicode.IsSpace(r) {
			continue
		}
		motors = append(motors, strings.ToUpper(string(r)))
	}
	return motors
}

// MotorInfo is one motor's stored target within a ratio.
type MotorInfo struct {
	Position   int `json:"position" yaml:"position" cbor:"position"`
	Adjustment int `json:"adjustment" yaml:"adjustment" cbor:"adjustment"`
}

// RatioInfo is one entry of the controller's aspect-ratio table.
type RatioInfo struct {
	ID       int               `json:"id" yaml:"id" cbor:"id"`
	Label    string            `json:"label" yaml:"label" cbor:"label"`
	Width    float64           `json:"width" yaml:"width" cbor:"width"`
	Height   float64           `json:"height" yaml:"height" cbor:"height"`
	Diagonal float64           `json:"diagonal" yaml:"diagonal" cbor:"diagonal"`
	Motors   map[int]MotorInfo `json:"motors" yaml:"motors" cbor:"motors"`
}

// Clone returns a deep copy of r.
func (r RatioInfo) Clone() RatioInfo {
	c := r
	if r.Motors != nil {
		c.Motors = make(map[int]MotorInfo, len(r.Motors))
		for k, v := range r.Motors {
			c.Motors[k] = v
		}
	}
	return c
}

// RatioStatus is the active ratio and activity code returned by CmdStatus
// and CmdSelectRatio.
type RatioStatus struct {
	RatioID    int        `json:"ratio_id" yaml:"ratio_id" cbor:"ratio_id"`
	StatusCode StatusCode `json:"status_code" yaml:"status_code" cbor:"status_code"`
}

// ============================================================
// Reply parsers
// ============================================================

// ParseSystemInfo parses "<proto>,<serial>,<model>,<width>,<height>,<mask_ids>".
func ParseSystemInfo(payload string) (SystemInfo, error) {
	fields := strings.SplitN(payload, ",", 6)
	if len(fields) != 6 {
		return SystemInfo{}, fmt.Errorf("%w: system info has %d fields, want 6", ErrProtocol, len(fields))
	}

	width, err := parseNumber("width", fields[3])
	if err != nil {
		return SystemInfo{}, err
	}
	height, err := parseNumber("height", fields[4])
	if err != nil {
		return SystemInfo{}, err
	}

	info := SystemInfo{
		ProtocolVersion: strings.TrimSpace(fields[0]),
		SerialNumber:    strings.TrimSpace(fields[1]),
		ScreenModel:     strings.TrimSpace(fields[2]),
		Width:           width,
		Height:          height,
		MaskIDs:         strings.TrimSpace(fields[5]),
	}
	if info.SerialNumber == "" {
		return SystemInfo{}, fmt.Errorf("%w: system info without serial number", ErrProtocol)
	}
	return info, nil
}

// ParseSettings parses the ratio table reply:
// "<n>;<id>,<label>,<width>,<height>,<diag>[,<pos>/<adj>]...;..."
func ParseSettings(payload string) (map[int]RatioInfo, error) {
	records := strings.Split(payload, ";")
	count, err := strconv.Atoi(strings.TrimSpace(records[0]))
	if err != nil || count < 0 {
		return nil, fmt.Errorf("%w: bad ratio count %q", ErrProtocol, records[0])
	}
	records = records[1:]
	if len(records) == 1 && records[0] == "" {
		records = nil
	}
	if len(records) != count {
		return nil, fmt.Errorf("%w: ratio count %d but %d records", ErrProtocol, count, len(records))
	}

	ratios := make(map[int]RatioInfo, count)
	for _, record := range records {
		ratio, err := parseRatio(record)
		if err != nil {
			return nil, err
		}
		if _, dup := ratios[ratio.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate ratio id %d", ErrProtocol, ratio.ID)
		}
		ratios[ratio.ID] = ratio
	}
	return ratios, nil
}

func parseRatio(record string) (RatioInfo, error) {
	fields := strings.Split(record, ",")
	if len(fields) < 5 {
		return RatioInfo{}, fmt.Errorf("%w: ratio record %q has %d fields", ErrProtocol, record, len(fields))
	}

	id, err := ParseRatioID(fields[0])
	if err != nil {
		return RatioInfo{}, err
	}
	width, err := parseNumber("ratio width", fields[2])
	if err != nil {
		return RatioInfo{}, err
	}
	height, err := parseNumber("ratio height", fields[3])
	if err != nil {
		return RatioInfo{}, err
	}
	diagonal, err := parseNumber("ratio diagonal", fields[4])
	if err != nil {
		return RatioInfo{}, err
	}

	ratio := RatioInfo{
		ID:       id,
		Label:    strings.TrimSpace(fields[1]),
		Width:    width,
		Height:   height,
		Diagonal: diagonal,
		Motors:   make(map[int]MotorInfo, len(fields)-5),
	}
	for i, field := range fields[5:] {
		pos, adj, ok := strings.Cut(field, "/")
		if !ok {
			return RatioInfo{}, fmt.Errorf("%w: motor entry %q missing '/'", ErrProtocol, field)
		}
		position, err := strconv.Atoi(strings.TrimSpace(pos))
		if err != nil {
			return RatioInfo{}, fmt.Errorf("%w: motor position %q", ErrProtocol, pos)
		}
		adjustment, err := strconv.Atoi(strings.TrimSpace(adj))
		if err != nil {
			return RatioInfo{}, fmt.Errorf("%w: motor adjustment %q", ErrProtocol, adj)
		}
		ratio.Motors[i+1] = MotorInfo{Position: position, Adjustment: adjustment}
	}
	return ratio, nil
}

// ParsePositions parses "<n>[,<pos>]..." into positions in mask order.
func ParsePositions(payload string) ([]int, error) {
	fields := strings.Split(payload, ",")
	count, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil || count < 0 {
		return nil, fmt.Errorf("%w: bad motor count %q", ErrProtocol, fields[0])
	}
	if len(fields)-1 != count {
		return nil, fmt.Errorf("%w: motor count %d but %d positions", ErrProtocol, count, len(fields)-1)
	}

	positions := make([]int, 0, count)
	for _, field := range fields[1:] {
		pos, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, fmt.Errorf("%w: motor position %q", ErrProtocol, field)
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

// ParseStatus parses "<ratio:3><status:2>".
func ParseStatus(payload string) (RatioStatus, error) {
	if len(payload) != RatioIDDigits+2 {
		return RatioStatus{}, fmt.Errorf("%w: status payload %q must be %d digits", ErrProtocol, payload, RatioIDDigits+2)
	}
	// 000 means no ratio is active
	ratio, err := strconv.Atoi(payload[:RatioIDDigits])
	if err != nil || ratio < 0 {
		return RatioStatus{}, fmt.Errorf("%w: status ratio %q", ErrProtocol, payload[:RatioIDDigits])
	}
	code, err := strconv.Atoi(payload[RatioIDDigits:])
	if err != nil || code < 0 {
		return RatioStatus{}, fmt.Errorf("%w: status code %q", ErrProtocol, payload[RatioIDDigits:])
	}
	return RatioStatus{RatioID: ratio, StatusCode: StatusCode(code)}, nil
}

// ParseJogState parses the optional jog acknowledgement. known is false
// when the controller did not report the new state.
func ParseJogState(payload string) (on bool, known bool, err error) {
	switch strings.TrimSpace(payload) {
	case "":
		return false, false, nil
	case "1":
		return true, true, nil
	case "0":
		return false, true, nil
	}
	return false, false, fmt.Errorf("%w: jog state %q", ErrProtocol, payload)
}

// ParseRatioID parses a ratio id field.
func ParseRatioID(field string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(field))
	if err != nil || id < MinRatioID || id > MaxRatioID {
		return 0, fmt.Errorf("%w: ratio id %q", ErrProtocol, field)
	}
	return id, nil
}

func parseNumber(name, field string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrProtocol, name, field)
	}
	return v, nil
}

// ============================================================
// Payload formatters
// ============================================================

// FormatRatioID renders a ratio id as the fixed-width wire field.
func FormatRatioID(id int) string {
	return fmt.Sprintf("%0*d", RatioIDDigits, id)
}

// FormatSystemInfo renders a system info reply payload.
func FormatSystemInfo(info SystemInfo) string {
	return strings.Join([]string{
		info.ProtocolVersion,
		info.SerialNumber,
		info.ScreenModel,
		formatNumber(info.Width),
		formatNumber(info.Height),
		info.MaskIDs,
	}, ",")
}

// FormatSettings renders a ratio table reply payload, ordered by ratio id.
func FormatSettings(ratios map[int]RatioInfo) string {
	ids := make([]int, 0, len(ratios))
	for id := range ratios {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var b strings.Builder
	b.WriteString(strconv.Itoa(len(ids)))
	for _, id := range ids {
		r := ratios[id]
		fmt.Fprintf(&b, ";%s,%s,%s,%s,%s", FormatRatioID(id), r.Label,
			formatNumber(r.Width), formatNumber(r.Height), formatNumber(r.Diagonal))
		for i := 1; i <= len(r.Motors); i++ {
			m := r.Motors[i]
			fmt.Fprintf(&b, ",%d/%d", m.Position, m.Adjustment)
		}
	}
	return b.String()
}

// FormatPositions renders a positions reply payload.
func FormatPositions(positions []int) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(len(positions)))
	for _, p := range positions {
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(p))
	}
	return b.String()
}

// FormatStatus renders a status reply payload.
func FormatStatus(status RatioStatus) string {
	return fmt.Sprintf("%s%02d", FormatRatioID(status.RatioID), int(status.StatusCode))
}

// FormatMove renders a move request payload: motor letter plus optional
// movement code.
func FormatMove(motor string, code MovementCode) string {
	return motor + string(code)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
