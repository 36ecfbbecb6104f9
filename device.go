package isp

import (
	"github.com/pkg/errors"
)

// Device 编程器代理，每个操作对应一次 send + receive，本层不做重试
type Device struct {
	ch *Channel
}

func NewDevice(ch *Channel) *Device {
	return &Device{ch: ch}
}

// Version 返回编程器固件版本(构建时间戳)
func (d *Device) Version() (string, error) {
	return d.ch.Exchange(NewPacket(CommandVersion))
}

// EnterDebugMode 复位目标进入引导模式，调用方需要自行等待设备稳定
func (d *Device) EnterDebugMode() error {
	_, err := d.ch.Exchange(NewPacket(CommandDebug))
	return err
}

// EnterNormalMode 复位目标回到用户程序
func (d *Device) EnterNormalMode() error {
	_, err := d.ch.Exchange(NewPacket(CommandNormal))
	return err
}

// SendByte 向目标发送一个字节，只关心是否成功
func (d *Device) SendByte(value byte) error {
	_, err := d.ch.Exchange(NewPacketArg(CommandSend, value))
	return err
}

/*
 * @Description: 从目标接收一个字节
 * @param timeout 设备端等待时长选择值，不是主机超时
 * @return byte
 * @return error
 */
func (d *Device) RecvByte(timeout byte) (byte, error) {
	payload, err := d.ch.Exchange(NewPacketArg(CommandRecv, timeout))
	if err != nil {
		return 0, err
	}
	v, err := parseHexByte(payload)
	if err != nil {
		return 0, errors.WithMessage(err, "recv")
	}
	return v, nil
}
