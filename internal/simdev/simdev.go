// Package simdev 模拟串口编程器及其后面的目标引导程序。
// Device 实现 io.ReadWriter，写入请求行后可读出应答行
package simdev

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	PageSize  = 128
	FlashSize = 0x8000

	// StoreLimit 及以上的页引导程序拒绝写入
	StoreLimit = 0x7000

	Version = "1400000000"
)

// Device 不支持并发使用
type Device struct {
	Flash [FlashSize]byte
	// Buffer 引导程序的单页工作缓冲区
	Buffer [PageSize]byte
	// Power 状态子命令返回的值
	Power byte
	// Debug 目标最近一次是否复位进入引导程序
	Debug bool

	// Notice 非空时在每个终结应答前先发一行 "#"
	Notice string

	// RejectRecv 接下来这么多次接收请求返回 "!"
	RejectRecv int
	// RejectRecvAt 每次接收请求都会调用，返回 true 时应答 "!"。
	// 参数为最近完成的子命令及其参数
	RejectRecvAt func(cmd byte, args []byte) bool
	// CorruptWrite 修改实际写入缓冲区的值，应答仍回显发送的值
	CorruptWrite func(offset, value byte) byte
	// CorruptRead 修改缓冲区读返回的值
	CorruptRead func(offset, value byte) byte

	// Requests 按命令字母计数
	Requests map[byte]int
	// Loads / Stores 完成的页加载、存储次数
	Loads  int
	Stores int
	// Log 收到的每一行请求
	Log []string

	in      []byte
	out     bytes.Buffer
	pending []byte // 目标已收到的子命令字节
	reply   []byte // 目标待返回的字节
	lastCmd []byte // 最近完成的子命令及参数
}

func New() *Device {
	d := &Device{Requests: make(map[byte]int), Power: 0x5A}
	for i := range d.Flash {
		d.Flash[i] = 0xFF
	}
	return d
}

func (d *Device) Write(p []byte) (int, error) {
	d.in = append(d.in, p...)
	for {
		i := bytes.IndexByte(d.in, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimRight(string(d.in[:i]), "\r")
		d.in = d.in[i+1:]
		if line != "" {
			d.handle(line)
		}
	}
	return len(p), nil
}

// Read 没有待读应答时返回 io.EOF
func (d *Device) Read(p []byte) (int, error) {
	if d.out.Len() == 0 {
		return 0, io.EOF
	}
	return d.out.Read(p)
}

// Inject 直接放入一行应答
func (d *Device) Inject(line string) {
	d.out.WriteString(line + "\r\n")
}

func (d *Device) putline(line string) {
	if d.Notice != "" {
		d.Inject("#" + d.Notice)
	}
	d.Inject(line)
}

func (d *Device) handle(line string) {
	d.Log = append(d.Log, line)
	d.Requests[line[0]]++
	switch line[0] {
	case 'v':
		d.Inject("#version(epoch) " + Version)
		d.putline("-" + Version)
	case 'd':
		d.Debug = true
		d.resetTarget()
		d.putline("-")
	case 'n':
		d.Debug = false
		d.resetTarget()
		d.putline("-")
	case 's':
		v, ok := parseArg(line)
		if !ok {
			d.putline("!")
			return
		}
		d.target(v)
		d.putline(fmt.Sprintf("-%02x", v))
	case 'r':
		if d.reject() {
			d.resetTarget()
			d.putline("!")
			return
		}
		if len(d.reply) == 0 {
			// 目标超时
			d.resetTarget()
			d.putline("!")
			return
		}
		v := d.reply[0]
		d.reply = d.reply[1:]
		d.putline(fmt.Sprintf("-%02x", v))
	default:
		d.Inject("#unknown command")
	}
}

func (d *Device) reject() bool {
	if d.RejectRecv > 0 {
		d.RejectRecv--
		return true
	}
	if d.RejectRecvAt != nil && len(d.pending) == 0 && len(d.lastCmd) > 0 {
		return d.RejectRecvAt(d.lastCmd[0], d.lastCmd[1:])
	}
	return false
}

func parseArg(line string) (byte, bool) {
	if len(line) != 3 {
		return 0, false
	}
	v, err := strconv.ParseUint(line[1:], 16, 8)
	if err != nil {
		return 0, false
	}
	return byte(v), true
}

func (d *Device) resetTarget() {
	d.pending = d.pending[:0]
	d.reply = d.reply[:0]
}
