package isp

import (
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// 编程器固件固定的波特率
const DefaultBaudRate = 19200

type PortConfig struct {
	Name     string
	BaudRate int

	// ReadTimeout 为 0 时读操作一直阻塞
	ReadTimeout time.Duration

	// DiscardFirstLine 打开后丢弃第一行(部分编程器上电会输出一行)
	DiscardFirstLine bool
}

// Port 串口，8N1
type Port struct {
	port    serial.Port
	timeout time.Duration
}

/*
 * @Description: 打开串口并清空输入缓冲区
 * @param cfg
 * @return *Port
 * @return error
 */
func OpenPort(cfg PortConfig) (*Port, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	sp, err := serial.Open(cfg.Name, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", cfg.Name)
	}
	p := &Port{port: sp, timeout: cfg.ReadTimeout}

	if err := sp.ResetInputBuffer(); err != nil {
		sp.Close()
		return nil, errors.Wrap(err, "reset input buffer")
	}
	if cfg.ReadTimeout > 0 {
		if err := sp.SetReadTimeout(cfg.ReadTimeout); err != nil {
			sp.Close()
			return nil, errors.Wrap(err, "set read timeout")
		}
	}
	if cfg.DiscardFirstLine {
		if err := p.discardLine(); err != nil {
			sp.Close()
			return nil, errors.WithMessage(err, "discard first line")
		}
	}
	return p, nil
}

// Read 设置了超时时，超时未收到数据返回 ErrReadTimeout
func (p *Port) Read(b []byte) (int, error) {
	for {
		n, err := p.port.Read(b)
		if n > 0 || err != nil {
			return n, err
		}
		if p.timeout > 0 {
			return 0, ErrReadTimeout
		}
	}
}

// Drain 读到串口安静一个超时周期为止，再清空输入缓冲区
func (p *Port) Drain() error {
	if p.timeout > 0 {
		buf := make([]byte, 64)
		for {
			n, err := p.port.Read(buf)
			if err != nil {
				return errors.Wrap(err, "drain")
			}
			if n == 0 {
				break
			}
		}
	}
	return errors.Wrap(p.port.ResetInputBuffer(), "reset input buffer")
}

func (p *Port) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

func (p *Port) Close() error {
	return p.port.Close()
}

func (p *Port) discardLine() error {
	buf := make([]byte, 1)
	for {
		if _, err := p.Read(buf); err != nil {
			return err
		}
		if buf[0] == '\n' {
			return nil
		}
	}
}

type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// ListPorts 列出系统中的串口
func ListPorts() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "list ports")
	}
	infos := make([]PortInfo, 0, len(ports))
	for _, p := range ports {
		infos = append(infos, PortInfo{
			Name:         p.Name,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		})
	}
	return infos, nil
}
