package isp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type Command byte

const (
	CommandVersion Command = 'v' // 读取编程器固件版本
	CommandDebug   Command = 'd' // 复位目标并进入调试(引导)模式
	CommandNormal  Command = 'n' // 复位目标并进入正常模式
	CommandSend    Command = 's' // 向目标发送一个字节
	CommandRecv    Command = 'r' // 从目标接收一个字节
)

func (c Command) valid() bool {
	switch c {
	case CommandVersion, CommandDebug, CommandNormal, CommandSend, CommandRecv:
		return true
	}
	return false
}

// Packet 一条请求：命令字母 + 可选的两位十六进制参数
type Packet struct {
	Command Command
	Arg     byte
	HasArg  bool
}

func NewPacket(command Command) Packet {
	return Packet{Command: command}
}

func NewPacketArg(command Command, arg byte) Packet {
	return Packet{Command: command, Arg: arg, HasArg: true}
}

func (p Packet) String() string {
	if p.HasArg {
		return fmt.Sprintf("%c%02x", byte(p.Command), p.Arg)
	}
	return string(rune(p.Command))
}

// Bytes 编码为线上格式 "<cmd><hex>\r\n"
func (p Packet) Bytes() []byte {
	return []byte(p.String() + "\r\n")
}

/*
 * @Description: 解析一条请求行，行尾的 CR/LF 可有可无
 * @param line
 * @return Packet
 * @return error
 */
func ParsePacket(line string) (Packet, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) == 0 {
		return Packet{}, errors.Wrap(ErrProtocolDesync, "empty request")
	}
	p := Packet{Command: Command(line[0])}
	if !p.Command.valid() {
		return Packet{}, errors.Wrapf(ErrProtocolDesync, "unknown command %q", line[0])
	}
	switch len(line) {
	case 1:
		return p, nil
	case 3:
		v, err := strconv.ParseUint(line[1:], 16, 8)
		if err != nil {
			return Packet{}, errors.Wrapf(ErrMalformedPayload, "argument %q", line[1:])
		}
		p.Arg, p.HasArg = byte(v), true
		return p, nil
	}
	return Packet{}, errors.Wrapf(ErrMalformedPayload, "request %q", line)
}

type Tag byte

const (
	TagInfo Tag = '#' // 提示信息，不结束本次应答
	TagOK   Tag = '-' // 成功，后面是负载
	TagFail Tag = '!' // 设备报告失败
)

// Response 设备返回的一行
type Response struct {
	Tag     Tag
	Payload string
}

func (r Response) Terminal() bool {
	return r.Tag != TagInfo
}

func (r Response) String() string {
	return string(rune(r.Tag)) + r.Payload
}

func ParseResponse(line string) (Response, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) == 0 {
		return Response{}, errors.Wrap(ErrProtocolDesync, "empty response line")
	}
	switch t := Tag(line[0]); t {
	case TagInfo, TagOK, TagFail:
		return Response{Tag: t, Payload: line[1:]}, nil
	}
	return Response{}, errors.Wrapf(ErrProtocolDesync, "unexpected response %q", line)
}
