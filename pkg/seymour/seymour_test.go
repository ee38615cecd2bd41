// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 johncarey70

package seymour

import (
	"errors"
	"strings"
	"testing"
)

// ============================================================
// Encoder Tests
// ============================================================

func TestEncode_SystemInfoQuery(t *testing.T) {
	data, err := Encode(DefaultAddress, CmdSystemInfo, "")
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if string(data) != "[01Y]" {
		t.Errorf("expected [01Y], got %q", data)
	}
}

func TestEncode_WithPayload(t *testing.T) {
	data, err := EncodeFrame(NewSelectRatio("01", 7))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if string(data) != "[01A007]" {
		t.Errorf("expected [01A007], got %q", data)
	}
}

func TestFrame_Bytes(t *testing.T) {
	if got := string(NewSelectRatio("01", 7).Bytes()); got != "[01A007]" {
		t.Errorf("expected [01A007], got %q", got)
	}
	bad := &Frame{address: "1", command: CmdStatus}
	if got := bad.Bytes(); got != nil {
		t.Errorf("expected nil for unencodable frame, got %q", got)
	}
}

func TestEncode_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		address string
		command Command
		payload string
	}{
		{"closing delimiter in payload", "01", CmdHome, "T]"},
		{"opening delimiter in payload", "01", CmdHome, "[T"},
		{"non-ascii payload", "01", CmdHome, "T\xe9"},
		{"control character", "01", CmdHome, "T\n"},
		{"short address", "1", CmdHome, "T"},
		{"non-digit address", "0A", CmdHome, "T"},
		{"lowercase command", "01", Command('y'), ""},
		{"oversized payload", "01", CmdHome, strings.Repeat("T", MaxPayloadSize+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.address, tt.command, tt.payload)
			if !errors.Is(err, ErrEncoding) {
				t.Errorf("expected ErrEncoding, got %v", err)
			}
		})
	}
}

func TestEncode_MaxPayloadFits(t *testing.T) {
	payload := strings.Repeat("9", MaxPayloadSize)
	data, err := Encode("01", CmdSettings, payload)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	frame, n, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if n != len(data) || frame.Payload() != payload {
		t.Errorf("max-size frame did not round trip (consumed %d of %d)", n, len(data))
	}
}

// ============================================================
// Decode Tests
// ============================================================

func TestDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		address string
		command Command
		payload string
	}{
		{"01", CmdSystemInfo, ""},
		{"01", CmdSystemInfo, "03,SN1,Retractable,100,56,T,B,L,R"},
		{"02", CmdPositions, "4,10,20,30,40"},
		{"99", CmdStatus, "00701"},
		{"01", CmdMoveIn, "TJ"},
		{"01", CmdSettings, "1;001,16:9,100,56.25,114.7,0/0,5/-2"},
	}

	for _, tt := range tests {
		t.Run(string(rune(tt.command))+tt.payload, func(t *testing.T) {
			data, err := Encode(tt.address, tt.command, tt.payload)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			frame, n, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if n != len(data) {
				t.Errorf("consumed %d, want %d", n, len(data))
			}
			if frame.Address() != tt.address || frame.Command() != tt.command || frame.Payload() != tt.payload {
				t.Errorf("round trip mismatch: got (%s, %c, %q)", frame.Address(), frame.Command(), frame.Payload())
			}
		})
	}
}

func TestDecode_NeedMoreData(t *testing.T) {
	for _, input := range []string{"", "[", "[01", "[01P4,10,20"} {
		frame, n, err := Decode([]byte(input))
		if !errors.Is(err, ErrNeedMoreData) {
			t.Errorf("%q: expected ErrNeedMoreData, got %v", input, err)
		}
		if frame != nil || n != 0 {
			t.Errorf("%q: expected no frame and nothing consumed, got %v/%d", input, frame, n)
		}
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		consumed int
	}{
		{"leading noise", "xx[01Y]", 2},
		{"noise only", "abc", 3},
		{"truncated by new frame", "[01P4,1[01Y]", 7},
		{"body too short", "[01]", 4},
		{"bad address", "[A1Y]", 5},
		{"lowercase command", "[01y]", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, n, err := Decode([]byte(tt.input))
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
			if frame != nil {
				t.Errorf("expected no frame, got %v", frame)
			}
			if n != tt.consumed {
				t.Errorf("consumed %d, want %d", n, tt.consumed)
			}
		})
	}
}

func TestDecode_ResyncAfterMalformed(t *testing.T) {
	buf := []byte("zz[01P4,1[01Y03,SN1,M,100,56,TBLR]")
	var frames []*Frame
	for len(buf) > 0 {
		frame, n, err := Decode(buf)
		if errors.Is(err, ErrNeedMoreData) {
			break
		}
		buf = buf[n:]
		if frame != nil {
			frames = append(frames, frame)
		}
	}
	if len(frames) != 1 || frames[0].Command() != CmdSystemInfo {
		t.Fatalf("expected one system info frame after resync, got %v", frames)
	}
}

func TestDecode_Oversized(t *testing.T) {
	input := "[01Q" + strings.Repeat("1", MaxBodySize)
	_, n, err := Decode([]byte(input))
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if n == 0 {
		t.Error("oversized frame must consume bytes")
	}
}

// ============================================================
// Streaming Decoder Tests
// ============================================================

func decodeAll(t *testing.T, d *Decoder, input string) ([]*Frame, int) {
	t.Helper()
	var frames []*Frame
	errs := 0
	for i := 0; i < len(input); i++ {
		frame, err := d.DecodeByte(input[i])
		if err != nil {
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("unexpected error type: %v", err)
			}
			errs++
			continue
		}
		if frame != nil {
			frames = append(frames, frame)
		}
	}
	return frames, errs
}

func TestDecoder_MultipleFrames(t *testing.T) {
	frames, errs := decodeAll(t, NewDecoder(), "[01P4,10,20,30,40][01S00100]")
	if errs != 0 {
		t.Errorf("expected no errors, got %d", errs)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[0].Command() != CmdPositions || frames[1].Command() != CmdStatus {
		t.Errorf("unexpected commands %c %c", frames[0].Command(), frames[1].Command())
	}
}

func TestDecoder_NoiseIsCounted(t *testing.T) {
	d := NewDecoder()
	frames, errs := decodeAll(t, d, "\r\n>[01J1]\r\n")
	if len(frames) != 1 || errs != 0 {
		t.Fatalf("expected 1 frame and no errors, got %d/%d", len(frames), errs)
	}
	if d.Discarded() != 5 {
		t.Errorf("expected 5 discarded bytes, got %d", d.Discarded())
	}
}

func TestDecoder_TruncatedFrameResyncs(t *testing.T) {
	frames, errs := decodeAll(t, NewDecoder(), "[01P4,10[01S00100]")
	if errs != 1 {
		t.Errorf("expected 1 malformed frame, got %d", errs)
	}
	if len(frames) != 1 || frames[0].Payload() != "00100" {
		t.Fatalf("expected the status frame, got %v", frames)
	}
}

func TestDecoder_OverflowResets(t *testing.T) {
	d := NewDecoder()
	_, errs := decodeAll(t, d, "[01Q"+strings.Repeat("1", MaxBodySize))
	if errs != 1 {
		t.Errorf("expected 1 overflow error, got %d", errs)
	}
	frames, _ := decodeAll(t, d, "[01Y]")
	if len(frames) != 1 {
		t.Error("decoder should recover after overflow")
	}
}

func TestDecoder_SplitAcrossReads(t *testing.T) {
	d := NewDecoder()
	first, _ := decodeAll(t, d, "[01P4,1")
	second, _ := decodeAll(t, d, "0,20,30,40]")
	if len(first) != 0 || len(second) != 1 {
		t.Fatalf("expected frame only after the closing byte, got %d/%d", len(first), len(second))
	}
	if second[0].Payload() != "4,10,20,30,40" {
		t.Errorf("unexpected payload %q", second[0].Payload())
	}
}

// ============================================================
// Payload Tests
// ============================================================

func TestParseSystemInfo(t *testing.T) {
	info, err := ParseSystemInfo("03,SN1,Retractable,100,56,T,B,L,R")
	if err != nil {
		t.Fatalf("ParseSystemInfo failed: %v", err)
	}
	if info.SerialNumber != "SN1" || info.Width != 100 || info.Height != 56 {
		t.Errorf("unexpected info %+v", info)
	}
	if got := strings.Join(info.Motors(), ""); got != "TBLR" {
		t.Errorf("expected motors TBLR, got %s", got)
	}
}

func TestParseSystemInfo_Errors(t *testing.T) {
	for _, payload := range []string{"", "03,SN1,M,100", "03,SN1,M,wide,56,TBLR", "03,,M,100,56,TBLR"} {
		if _, err := ParseSystemInfo(payload); !errors.Is(err, ErrProtocol) {
			t.Errorf("%q: expected ErrProtocol, got %v", payload, err)
		}
	}
}

func TestParseMaskIDs(t *testing.T) {
	tests := map[string]string{
		"T,B,L,R": "TBLR",
		"TBLR":    "TBLR",
		"t, b":    "TB",
		"":        "",
	}
	for in, want := range tests {
		if got := strings.Join(ParseMaskIDs(in), ""); got != want {
			t.Errorf("ParseMaskIDs(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseSettings(t *testing.T) {
	ratios, err := ParseSettings("2;001,16:9,100,56.25,114.7,0/0,0/0;002,2.35:1,100,42.5,108.7,120/-3,120/2")
	if err != nil {
		t.Fatalf("ParseSettings failed: %v", err)
	}
	if len(ratios) != 2 {
		t.Fatalf("expected 2 ratios, got %d", len(ratios))
	}
	scope := ratios[2]
	if scope.Label != "2.35:1" || scope.Height != 42.5 {
		t.Errorf("unexpected ratio %+v", scope)
	}
	if scope.Motors[1] != (MotorInfo{Position: 120, Adjustment: -3}) {
		t.Errorf("unexpected motor 1: %+v", scope.Motors[1])
	}
}

func TestParseSettings_Errors(t *testing.T) {
	for _, payload := range []string{
		"x",
		"2;001,16:9,100,56,114",
		"1;001,16:9,100,56",
		"1;001,16:9,100,56,114,120",
		"2;001,a,1,1,1;001,b,1,1,1",
	} {
		if _, err := ParseSettings(payload); !errors.Is(err, ErrProtocol) {
			t.Errorf("%q: expected ErrProtocol, got %v", payload, err)
		}
	}
}

func TestParseSettings_Empty(t *testing.T) {
	ratios, err := ParseSettings("0")
	if err != nil || len(ratios) != 0 {
		t.Errorf("expected empty table, got %v, %v", ratios, err)
	}
}

func TestParsePositions(t *testing.T) {
	positions, err := ParsePositions("4,10,20,30,40")
	if err != nil {
		t.Fatalf("ParsePositions failed: %v", err)
	}
	want := []int{10, 20, 30, 40}
	for i := range want {
		if positions[i] != want[i] {
			t.Errorf("position %d: got %d want %d", i, positions[i], want[i])
		}
	}

	if _, err := ParsePositions("3,10,20"); !errors.Is(err, ErrProtocol) {
		t.Errorf("count mismatch: expected ErrProtocol, got %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	status, err := ParseStatus("99401")
	if err != nil {
		t.Fatalf("ParseStatus failed: %v", err)
	}
	if status.RatioID != 994 || status.StatusCode != StatusMoving {
		t.Errorf("unexpected status %+v", status)
	}
	if status.StatusCode.String() != "Moving" {
		t.Errorf("unexpected label %s", status.StatusCode)
	}
	if StatusCode(42).String() != "Unknown" {
		t.Error("unmapped codes should read Unknown")
	}

	for _, payload := range []string{"", "0010", "00100x", "000ab"} {
		if _, err := ParseStatus(payload); !errors.Is(err, ErrProtocol) {
			t.Errorf("%q: expected ErrProtocol, got %v", payload, err)
		}
	}
}

func TestParseJogState(t *testing.T) {
	tests := []struct {
		payload string
		on      bool
		known   bool
		wantErr bool
	}{
		{"", false, false, false},
		{"1", true, true, false},
		{"0", false, true, false},
		{"2", false, false, true},
	}
	for _, tt := range tests {
		on, known, err := ParseJogState(tt.payload)
		if (err != nil) != tt.wantErr || on != tt.on || known != tt.known {
			t.Errorf("%q: got (%t, %t, %v)", tt.payload, on, known, err)
		}
	}
}

func TestFormatters_MatchParsers(t *testing.T) {
	info := SystemInfo{ProtocolVersion: "03", SerialNumber: "SN1", ScreenModel: "M", Width: 100, Height: 56.5, MaskIDs: "TBLR"}
	parsed, err := ParseSystemInfo(FormatSystemInfo(info))
	if err != nil || parsed != info {
		t.Errorf("system info: got %+v, %v", parsed, err)
	}

	ratios := map[int]RatioInfo{
		1:   {ID: 1, Label: "16:9", Width: 100, Height: 56.25, Diagonal: 114.7, Motors: map[int]MotorInfo{1: {0, 0}, 2: {5, -1}}},
		990: {ID: 990, Label: "Preset", Width: 90, Height: 40, Diagonal: 98.5, Motors: map[int]MotorInfo{}},
	}
	table, err := ParseSettings(FormatSettings(ratios))
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if table[1].Motors[2] != (MotorInfo{5, -1}) || table[990].Label != "Preset" {
		t.Errorf("settings: got %+v", table)
	}

	status := RatioStatus{RatioID: 7, StatusCode: StatusHoming}
	if got := FormatStatus(status); got != "00702" {
		t.Errorf("FormatStatus = %q", got)
	}
}

// ============================================================
// Formatter Tests
// ============================================================

func TestFormatFrame(t *testing.T) {
	frame := NewFrame("01", CmdPositions, "4,10,20,30,40")
	out := FormatFrame(frame)
	if !strings.Contains(out, "POSITIONS") || !strings.Contains(out, "[10 20 30 40]") {
		t.Errorf("unexpected output:\n%s", out)
	}

	bad := FormatFrame(NewFrame("01", CmdStatus, "zz"))
	if !strings.Contains(bad, "PARSE ERROR") {
		t.Errorf("expected parse error note:\n%s", bad)
	}

	move := FormatFrame(NewFrame("01", CmdMoveOut, "LP"))
	if !strings.Contains(move, "L (Left)") || !strings.Contains(move, "Percent") {
		t.Errorf("unexpected move output:\n%s", move)
	}
}

func TestCommand_Known(t *testing.T) {
	for _, c := range Commands {
		if !c.Known() || FormatCommand(c) == "UNKNOWN" {
			t.Errorf("command %c should be known", byte(c))
		}
	}
	if Command('Z').Known() {
		t.Error("Z is not a command")
	}
}

// ============================================================
// Statistics Tests
// ============================================================

func TestStatistics(t *testing.T) {
	s := NewStatistics()
	s.FrameReceived(nil)
	s.FrameReceived(nil)
	s.FrameReceived(ErrMalformed)
	s.FrameSent()
	s.Unsolicited(true)
	s.Timeout()
	s.Busy()

	snap := s.Snapshot()
	if snap.FramesReceived != 2 || snap.MalformedFrames != 1 || snap.FramesSent != 1 {
		t.Errorf("unexpected counters %+v", snap)
	}
	if snap.UnsolicitedFrames != 1 || snap.DroppedFrames != 1 || snap.Timeouts != 1 || snap.BusyRejections != 1 {
		t.Errorf("unexpected counters %+v", snap)
	}
	if !strings.Contains(s.String(), "Malformed:") {
		t.Errorf("summary should list malformed frames:\n%s", s.String())
	}

	s.Reset()
	if s.Snapshot().FramesReceived != 0 {
		t.Error("Reset should clear counters")
	}
}

// ============================================================
// Validator Tests
// ============================================================

func TestValidateFrame(t *testing.T) {
	tests := []struct {
		name  string
		frame *Frame
		want  []AnomalyType
	}{
		{"query", NewFrame("01", CmdSystemInfo, ""), nil},
		{"system info", NewFrame("01", CmdSystemInfo, "03,SN1,Fixed,100,56,TBLR"), nil},
		{"unknown mask", NewFrame("01", CmdSystemInfo, "03,SN1,Fixed,100,56,TBZ"), []AnomalyType{AnomalyUnknownMotor}},
		{"unknown command", NewFrame("01", Command('Z'), ""), []AnomalyType{AnomalyUnknownCommand}},
		{"positions", NewFrame("01", CmdPositions, "2,10,20"), nil},
		{"negative position", NewFrame("01", CmdPositions, "2,-1,20"), []AnomalyType{AnomalyNegativePosition}},
		{"bad positions", NewFrame("01", CmdPositions, "3,10"), []AnomalyType{AnomalyParseError}},
		{"status", NewFrame("01", CmdStatus, "00201"), nil},
		{"unknown status", NewFrame("01", CmdStatus, "00242"), []AnomalyType{AnomalyUnknownStatus}},
		{"move", NewFrame("01", CmdMoveIn, "TJ"), nil},
		{"move unknown motor", NewFrame("01", CmdHome, "Q"), []AnomalyType{AnomalyUnknownMotor}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateFrame(tt.frame)
			if len(errs) != len(tt.want) {
				t.Fatalf("got %d errors %v, want %d", len(errs), errs, len(tt.want))
			}
			for i, e := range errs {
				if e.Type != tt.want[i] {
					t.Errorf("error %d: type %d, want %d (%s)", i, e.Type, tt.want[i], e.Message)
				}
			}
		})
	}
}

func TestCheckMotorCount(t *testing.T) {
	info := SystemInfo{MaskIDs: "T,B"}
	if err := CheckMotorCount(info, []int{1, 2}); err != nil {
		t.Errorf("unexpected mismatch: %v", err)
	}
	if err := CheckMotorCount(SystemInfo{}, []int{1}); err != nil {
		t.Errorf("unknown mask ids should not be checked: %v", err)
	}
	err := CheckMotorCount(info, []int{1})
	if err == nil || err.Type != AnomalyMotorCountMismatch {
		t.Fatalf("expected mismatch, got %v", err)
	}
}
