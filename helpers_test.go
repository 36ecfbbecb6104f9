package isp

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tocurd/xfr-isp/internal/simdev"
)

// MockLogger 记录日志消息
type MockLogger struct {
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
	fields    [][]interface{}
}

func (l *MockLogger) Debug(msg string, kv ...interface{}) {
	l.debugMsgs = append(l.debugMsgs, msg)
	l.fields = append(l.fields, kv)
}

func (l *MockLogger) Info(msg string, kv ...interface{}) {
	l.infoMsgs = append(l.infoMsgs, msg)
}

func (l *MockLogger) Warn(msg string, kv ...interface{}) {
	l.warnMsgs = append(l.warnMsgs, msg)
}

func (l *MockLogger) Error(msg string, kv ...interface{}) {
	l.errorMsgs = append(l.errorMsgs, msg)
}

// linePort 预先写好的应答，记录主机写出的内容
type linePort struct {
	in  *bytes.Buffer
	out bytes.Buffer
}

func newLinePort(lines ...string) *linePort {
	var in bytes.Buffer
	for _, l := range lines {
		in.WriteString(l + "\r\n")
	}
	return &linePort{in: &in}
}

func (p *linePort) Read(b []byte) (int, error)  { return p.in.Read(b) }
func (p *linePort) Write(b []byte) (int, error) { return p.out.Write(b) }

func newTestISP(dev *simdev.Device, opts ...Option) *ISP {
	return NewISP(NewDevice(NewChannel(dev, nil)), opts...)
}

func pattern(seed byte) []byte {
	data := make([]byte, PageSize)
	for i := range data {
		data[i] = seed + byte(i*7)
	}
	return data
}

// hexRecord 生成一行数据记录
func hexRecord(addr uint16, data []byte) string {
	sum := byte(len(data)) + byte(addr>>8) + byte(addr)
	var sb strings.Builder
	fmt.Fprintf(&sb, ":%02X%04X00", len(data), addr)
	for _, b := range data {
		fmt.Fprintf(&sb, "%02X", b)
		sum += b
	}
	fmt.Fprintf(&sb, "%02X", byte(-sum))
	return sb.String()
}

// hexFile 把数据按 16 字节一行写成 HEX 文件
func hexFile(t *testing.T, chunks map[uint16][]byte) string {
	t.Helper()
	var lines []string
	for addr, data := range chunks {
		for i := 0; i < len(data); i += 16 {
			end := i + 16
			if end > len(data) {
				end = len(data)
			}
			lines = append(lines, hexRecord(addr+uint16(i), data[i:end]))
		}
	}
	lines = append(lines, ":00000001FF")
	path := filepath.Join(t.TempDir(), "image.hex")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
