package isp

import (
	"testing"

	"github.com/pkg/errors"
)

func TestPacketBytes(t *testing.T) {
	tests := []struct {
		packet Packet
		want   string
	}{
		{NewPacket(CommandVersion), "v\r\n"},
		{NewPacket(CommandDebug), "d\r\n"},
		{NewPacket(CommandNormal), "n\r\n"},
		{NewPacketArg(CommandSend, 0x02), "s02\r\n"},
		{NewPacketArg(CommandSend, 0xAB), "sab\r\n"},
		{NewPacketArg(CommandRecv, TimeoutLoad), "rff\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.want[:len(tt.want)-2], func(t *testing.T) {
			if got := string(tt.packet.Bytes()); got != tt.want {
				t.Errorf("Bytes() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPacketRoundTrip(t *testing.T) {
	var packets []Packet
	for _, c := range []Command{CommandVersion, CommandDebug, CommandNormal} {
		packets = append(packets, NewPacket(c))
	}
	for _, c := range []Command{CommandSend, CommandRecv} {
		for _, arg := range []byte{0x00, 0x0a, 0x64, 0x7f, 0xff} {
			packets = append(packets, NewPacketArg(c, arg))
		}
	}

	for _, p := range packets {
		wire := string(p.Bytes())
		parsed, err := ParsePacket(wire)
		if err != nil {
			t.Fatalf("ParsePacket(%q) error = %v", wire, err)
		}
		if got := string(parsed.Bytes()); got != wire {
			t.Errorf("round trip %q -> %q", wire, got)
		}
	}
}

func TestParsePacketErrors(t *testing.T) {
	tests := []struct {
		line string
		want error
	}{
		{"", ErrProtocolDesync},
		{"x01", ErrProtocolDesync},
		{"s0", ErrMalformedPayload},
		{"szz", ErrMalformedPayload},
		{"s0102", ErrMalformedPayload},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if _, err := ParsePacket(tt.line); !errors.Is(err, tt.want) {
				t.Errorf("ParsePacket(%q) error = %v, want %v", tt.line, err, tt.want)
			}
		})
	}
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		line     string
		want     Response
		terminal bool
		wantErr  error
	}{
		{line: "-2a\r\n", want: Response{TagOK, "2a"}, terminal: true},
		{line: "-", want: Response{TagOK, ""}, terminal: true},
		{line: "!", want: Response{TagFail, ""}, terminal: true},
		{line: "#busy", want: Response{TagInfo, "busy"}},
		{line: "\r\n", wantErr: ErrProtocolDesync},
		{line: "ok", wantErr: ErrProtocolDesync},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseResponse(tt.line)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseResponse() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseResponse() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseResponse() = %+v, want %+v", got, tt.want)
			}
			if got.Terminal() != tt.terminal {
				t.Errorf("Terminal() = %v, want %v", got.Terminal(), tt.terminal)
			}
		})
	}
}
