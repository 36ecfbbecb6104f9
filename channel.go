package isp

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// drainer 丢弃输入中迟到的应答，*Port 实现
type drainer interface {
	Drain() error
}

// Channel 半双工文本命令通道，同一时刻只有一个未完成的请求
type Channel struct {
	rw     io.ReadWriter
	reader *bufio.Reader
	log    Logger
}

func NewChannel(rw io.ReadWriter, logger Logger) *Channel {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Channel{rw: rw, reader: bufio.NewReader(rw), log: logger}
}

// Send 写出请求，不等待应答
func (c *Channel) Send(p Packet) error {
	if _, err := c.rw.Write(p.Bytes()); err != nil {
		return errors.Wrapf(err, "write %q", p.String())
	}
	return nil
}

/*
 * @Description: 读取应答直到收到 "-" 或 "!"，"#" 行只记录日志。
 * 没有超时，设备不应答时会一直阻塞(除非串口设置了读超时)
 * @return payload
 * @return error
 */
func (c *Channel) Receive() (string, error) {
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, ErrReadTimeout) {
				return "", c.resync(err)
			}
			return "", errors.Wrap(err, "read response")
		}
		resp, err := ParseResponse(line)
		if err != nil {
			return "", err
		}
		switch resp.Tag {
		case TagInfo:
			c.log.Debug("device", "line", resp.Payload)
			continue
		case TagFail:
			return "", errors.Wrapf(ErrDeviceRejected, "response %q", resp.String())
		}
		return resp.Payload, nil
	}
}

// Exchange 发送一条请求并等待其应答
func (c *Channel) Exchange(p Packet) (string, error) {
	if err := c.Send(p); err != nil {
		return "", err
	}
	payload, err := c.Receive()
	if err != nil {
		return "", errors.WithMessagef(err, "command %q", p.String())
	}
	return payload, nil
}

/*
 * @Description: 读超时后迟到的应答仍会到达，必须丢弃后才能重试，
 * 否则之后每个请求都会读到上一个请求的应答
 * @param timeout 超时错误
 * @return error 清空成功时仍为超时(可重试)，否则为 ErrProtocolDesync
 */
func (c *Channel) resync(timeout error) error {
	d, ok := c.rw.(drainer)
	if !ok {
		c.reader.Reset(c.rw)
		return errors.Wrapf(ErrProtocolDesync, "%v, input cannot be drained", timeout)
	}
	if err := d.Drain(); err != nil {
		return errors.Wrapf(ErrProtocolDesync, "%v, drain: %v", timeout, err)
	}
	c.reader.Reset(c.rw)
	c.log.Debug("input drained after timeout")
	return errors.Wrap(timeout, "read response")
}
