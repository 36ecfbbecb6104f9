package isp

import (
	"bytes"
	"io"
	"reflect"
	"testing"

	"github.com/pkg/errors"

	"github.com/tocurd/xfr-isp/internal/simdev"
)

func TestISP_WireSequence(t *testing.T) {
	tests := []struct {
		name string
		run  func(t *ISP) error
		want []string
	}{
		{
			name: "read buffer byte",
			run:  func(t *ISP) error { _, err := t.ReadBufferByte(0x05); return err },
			want: []string{"s00", "s05", "r0a"},
		},
		{
			name: "write buffer byte",
			run:  func(t *ISP) error { return t.WriteBufferByte(0x05, 0x7f) },
			want: []string{"s01", "s05", "s7f", "r0a"},
		},
		{
			name: "hash",
			run:  func(t *ISP) error { _, err := t.HashBuffer(); return err },
			want: []string{"s03", "r64"},
		},
		{
			name: "status",
			run:  func(t *ISP) error { _, err := t.Status(); return err },
			want: []string{"s02", "r64"},
		},
		{
			name: "load page",
			run:  func(t *ISP) error { return t.LoadPage(0x0180) },
			want: []string{"s04", "s01", "s80", "rff"},
		},
		{
			name: "store page",
			run:  func(t *ISP) error { return t.StorePage(0x0180) },
			want: []string{"s05", "s01", "s80", "r64"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := simdev.New()
			if err := tt.run(newTestISP(dev)); err != nil {
				t.Fatalf("error = %v", err)
			}
			if !reflect.DeepEqual(dev.Log, tt.want) {
				t.Errorf("requests = %v, want %v", dev.Log, tt.want)
			}
		})
	}
}

func TestISP_BufferByte(t *testing.T) {
	dev := simdev.New()
	engine := newTestISP(dev)

	if err := engine.WriteBufferByte(0x10, 0xA5); err != nil {
		t.Fatal(err)
	}
	if dev.Buffer[0x10] != 0xA5 {
		t.Errorf("buffer[0x10] = 0x%02X", dev.Buffer[0x10])
	}
	got, err := engine.ReadBufferByte(0x10)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0xA5 {
		t.Errorf("ReadBufferByte() = 0x%02X, want 0xA5", got)
	}

	hash, err := engine.HashBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if want := XorshiftHash(dev.Buffer[:]); hash != want {
		t.Errorf("HashBuffer() = 0x%02X, want 0x%02X", hash, want)
	}

	if _, err := engine.ReadBufferByte(PageSize); !errors.Is(err, ErrOffsetRange) {
		t.Errorf("offset 128 error = %v, want ErrOffsetRange", err)
	}
	if err := engine.WriteBufferByte(0xFF, 0); !errors.Is(err, ErrOffsetRange) {
		t.Errorf("offset 255 error = %v, want ErrOffsetRange", err)
	}
}

func TestISP_Status(t *testing.T) {
	dev := simdev.New()
	dev.Power = 0x42
	got, err := newTestISP(dev).Status()
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x42 {
		t.Errorf("Status() = 0x%02X, want 0x42", got)
	}
}

func TestISP_PageRoundTrip(t *testing.T) {
	dev := simdev.New()
	engine := newTestISP(dev)
	data := pattern(0x11)

	if err := engine.WritePage(0x0100, data); err != nil {
		t.Fatalf("WritePage() error = %v", err)
	}
	if !bytes.Equal(dev.Flash[0x0100:0x0180], data) {
		t.Fatal("flash does not hold written page")
	}
	if dev.Stores != 1 {
		t.Errorf("Stores = %d, want 1", dev.Stores)
	}

	// 清掉缓冲区，确认数据来自 flash
	dev.Buffer = [simdev.PageSize]byte{}
	got, err := engine.ReadPage(0x0100)
	if err != nil {
		t.Fatalf("ReadPage() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("ReadPage() = % x, want % x", got[:8], data[:8])
	}
	if dev.Loads != 1 {
		t.Errorf("Loads = %d, want 1", dev.Loads)
	}
}

func TestISP_ReadPageRetry(t *testing.T) {
	dev := simdev.New()
	failures := 0
	dev.RejectRecvAt = func(cmd byte, args []byte) bool {
		if cmd == 0x00 && args[0] == 5 && failures < 2 {
			failures++
			return true
		}
		return false
	}
	logger := &MockLogger{}
	engine := newTestISP(dev, WithLogger(logger))

	if _, err := engine.ReadPage(0x0000); err != nil {
		t.Fatalf("ReadPage() error = %v", err)
	}
	// load + 128 读 + 2 次重试 + hash
	if got := dev.Requests['r']; got != 1+PageSize+2+1 {
		t.Errorf("receive requests = %d, want %d", got, 1+PageSize+2+1)
	}
	if len(logger.warnMsgs) != 2 {
		t.Errorf("warnings = %v, want 2", logger.warnMsgs)
	}
}

func TestISP_ReadPageTooManyRetries(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		attempt int
	}{
		{name: "default", attempt: DefaultRetries},
		{name: "five attempts", opts: []Option{WithRetries(5)}, attempt: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := simdev.New()
			attempts := 0
			dev.RejectRecvAt = func(cmd byte, args []byte) bool {
				if cmd == 0x00 && args[0] == 5 {
					attempts++
					return true
				}
				return false
			}

			data, err := newTestISP(dev, tt.opts...).ReadPage(0x0000)
			if data != nil {
				t.Error("partial page returned")
			}
			if !errors.Is(err, ErrTooManyRetries) {
				t.Fatalf("ReadPage() error = %v, want ErrTooManyRetries", err)
			}
			var re *RetryError
			if !errors.As(err, &re) {
				t.Fatalf("error %T is not *RetryError", err)
			}
			if re.Offset != 5 || re.Attempts != tt.attempt || re.Op != "read" {
				t.Errorf("RetryError = %+v", re)
			}
			if attempts != tt.attempt {
				t.Errorf("attempts on offset 5 = %d, want %d", attempts, tt.attempt)
			}
			// 第 5 字节失败后不再读后面的字节
			if got := dev.Requests['r']; got != 1+5+tt.attempt {
				t.Errorf("receive requests = %d, want %d", got, 1+5+tt.attempt)
			}
		})
	}
}

func TestISP_WritePageTooManyRetries(t *testing.T) {
	dev := simdev.New()
	dev.RejectRecvAt = func(cmd byte, args []byte) bool {
		return cmd == 0x01 && args[0] == 0x40
	}
	err := newTestISP(dev).WritePage(0x0080, pattern(1))

	var re *RetryError
	if !errors.As(err, &re) || re.Op != "write" || re.Offset != 0x40 {
		t.Fatalf("WritePage() error = %v, want write retry error at 0x40", err)
	}
	if dev.Stores != 0 {
		t.Error("page stored after failed write")
	}
}

func TestISP_WritePageHashMismatch(t *testing.T) {
	dev := simdev.New()
	dev.CorruptWrite = func(offset, value byte) byte {
		if offset == 10 {
			return value ^ 0x04
		}
		return value
	}
	data := pattern(0x30)

	err := newTestISP(dev).WritePage(0x0200, data)
	if !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("WritePage() error = %v, want ErrHashMismatch", err)
	}
	var he *HashMismatchError
	if !errors.As(err, &he) {
		t.Fatalf("error %T is not *HashMismatchError", err)
	}
	if he.Page != 0x0200 || he.Local != XorshiftHash(data) || he.Device != simdev.Hash(dev.Buffer[:]) {
		t.Errorf("HashMismatchError = %+v", he)
	}
	if dev.Stores != 0 {
		t.Error("page stored despite hash mismatch")
	}
}

func TestISP_ReadPageHashMismatch(t *testing.T) {
	dev := simdev.New()
	dev.CorruptRead = func(offset, value byte) byte {
		if offset == 3 {
			return value ^ 0x80
		}
		return value
	}
	data, err := newTestISP(dev).ReadPage(0x0000)
	if !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("ReadPage() error = %v, want ErrHashMismatch", err)
	}
	if data != nil {
		t.Error("data returned despite hash mismatch")
	}
}

func TestISP_PageArguments(t *testing.T) {
	dev := simdev.New()
	engine := newTestISP(dev)

	if err := engine.WritePage(0x0000, make([]byte, PageSize-1)); !errors.Is(err, ErrPageSizeMismatch) {
		t.Errorf("short page error = %v, want ErrPageSizeMismatch", err)
	}
	if _, err := engine.ReadPage(0x0101); !errors.Is(err, ErrUnalignedPage) {
		t.Errorf("unaligned read error = %v, want ErrUnalignedPage", err)
	}
	if err := engine.WritePage(0x0040, make([]byte, PageSize)); !errors.Is(err, ErrUnalignedPage) {
		t.Errorf("unaligned write error = %v, want ErrUnalignedPage", err)
	}
	if len(dev.Log) != 0 {
		t.Errorf("requests sent for invalid arguments: %v", dev.Log)
	}
}

func TestISP_StoreRefused(t *testing.T) {
	dev := simdev.New()
	err := newTestISP(dev).WritePage(simdev.StoreLimit, pattern(2))
	if !errors.Is(err, ErrDeviceRejected) {
		t.Fatalf("WritePage() error = %v, want ErrDeviceRejected", err)
	}
	if errors.Is(err, ErrTooManyRetries) {
		t.Error("store failure must not be retried")
	}
}

func TestISP_DesyncNotRetried(t *testing.T) {
	dev := simdev.New()
	dev.Inject("?garbage")
	_, err := newTestISP(dev).ReadPage(0x0000)
	if !errors.Is(err, ErrProtocolDesync) {
		t.Fatalf("ReadPage() error = %v, want ErrProtocolDesync", err)
	}
	if errors.Is(err, ErrTooManyRetries) {
		t.Error("desync must not be retried")
	}
	if got := len(dev.Log); got != 1 {
		t.Errorf("requests = %v, want only the first", dev.Log)
	}
}

func TestISP_InfoChatter(t *testing.T) {
	dev := simdev.New()
	dev.Notice = "busy"
	engine := newTestISP(dev)
	data := pattern(0x55)
	if err := engine.WritePage(0x0000, data); err != nil {
		t.Fatal(err)
	}
	got, err := engine.ReadPage(0x0000)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Error("round trip with info lines failed")
	}
}

// slowPort 第 at 个接收请求的应答迟到，主机先读到超时
type slowPort struct {
	dev   *simdev.Device
	at    int
	recvs int
	late  bool
}

func (p *slowPort) Write(b []byte) (int, error) {
	if len(b) > 0 && b[0] == 'r' {
		p.recvs++
		p.late = p.recvs == p.at
	}
	return p.dev.Write(b)
}

func (p *slowPort) Read(b []byte) (int, error) {
	if p.late {
		p.late = false
		return 0, ErrReadTimeout
	}
	return p.dev.Read(b)
}

// drainingPort 能丢弃迟到的应答
type drainingPort struct {
	*slowPort
}

func (p drainingPort) Drain() error {
	_, err := io.Copy(io.Discard, p.dev)
	return err
}

func TestISP_ReadTimeoutResync(t *testing.T) {
	dev := simdev.New()
	for i := 0; i < PageSize; i++ {
		dev.Flash[0x0100+i] = byte(i * 3)
	}
	logger := &MockLogger{}
	// 第 3 个接收请求是偏移 1 的读
	port := drainingPort{&slowPort{dev: dev, at: 3}}
	engine := NewISP(NewDevice(NewChannel(port, logger)), WithLogger(logger))

	got, err := engine.ReadPage(0x0100)
	if err != nil {
		t.Fatalf("ReadPage() error = %v", err)
	}
	if !bytes.Equal(got, dev.Flash[0x0100:0x0180]) {
		t.Errorf("ReadPage() = % x", got[:8])
	}
	if len(logger.warnMsgs) != 1 {
		t.Errorf("warnings = %v, want 1", logger.warnMsgs)
	}

	// 之后的请求读到的是自己的应答
	v, err := engine.ReadBufferByte(7)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x15 {
		t.Errorf("ReadBufferByte(7) = 0x%02X, want 0x15", v)
	}
}

func TestISP_ReadTimeoutWithoutDrain(t *testing.T) {
	dev := simdev.New()
	port := &slowPort{dev: dev, at: 3}
	_, err := NewISP(NewDevice(NewChannel(port, nil))).ReadPage(0x0100)
	if !errors.Is(err, ErrProtocolDesync) {
		t.Fatalf("ReadPage() error = %v, want ErrProtocolDesync", err)
	}
	if errors.Is(err, ErrTooManyRetries) {
		t.Error("undrainable timeout must not be retried")
	}
	if got := dev.Requests['r']; got != 3 {
		t.Errorf("receive requests = %d, want 3", got)
	}
}
