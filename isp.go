package isp

import (
	"github.com/pkg/errors"
)

// 目标 flash 页大小
const PageSize = 128

// 目标引导程序的缓冲区子命令
const (
	bufferRead  byte = 0x00
	bufferWrite byte = 0x01
	bufferPower byte = 0x02
	bufferHash  byte = 0x03
	bufferLoad  byte = 0x04
	bufferStore byte = 0x05
)

// 接收字节时的设备端等待时长
const (
	TimeoutByte  byte = 10
	TimeoutHash  byte = 100
	TimeoutLoad  byte = 255
	TimeoutStore byte = 100
)

// ISP 目标工作缓冲区与 flash 页的读写，单字节重试，整页校验
type ISP struct {
	Device  *Device
	retries int
	log     Logger
}

func NewISP(device *Device, opts ...Option) *ISP {
	cfg := newConfig(opts)
	return &ISP{Device: device, retries: cfg.Retries, log: cfg.Logger}
}

func (t *ISP) sendBytes(data ...byte) error {
	for _, b := range data {
		if err := t.Device.SendByte(b); err != nil {
			return err
		}
	}
	return nil
}

/*
 * @Description: 读取工作缓冲区中的一个字节
 * @param offset 0..127
 * @return byte
 * @return error
 */
func (t *ISP) ReadBufferByte(offset byte) (byte, error) {
	if offset >= PageSize {
		return 0, errors.Wrapf(ErrOffsetRange, "offset 0x%02X", offset)
	}
	if err := t.sendBytes(bufferRead, offset); err != nil {
		return 0, err
	}
	return t.Device.RecvByte(TimeoutByte)
}

/*
 * @Description: 写入工作缓冲区中的一个字节，应答内容丢弃
 * @param offset 0..127
 * @param value
 * @return error
 */
func (t *ISP) WriteBufferByte(offset byte, value byte) error {
	if offset >= PageSize {
		return errors.Wrapf(ErrOffsetRange, "offset 0x%02X", offset)
	}
	if err := t.sendBytes(bufferWrite, offset, value); err != nil {
		return err
	}
	_, err := t.Device.RecvByte(TimeoutByte)
	return err
}

// HashBuffer 设备计算的缓冲区校验值
func (t *ISP) HashBuffer() (byte, error) {
	if err := t.sendBytes(bufferHash); err != nil {
		return 0, err
	}
	return t.Device.RecvByte(TimeoutHash)
}

// Status 目标的 Vbg/Vcc ADC 读数
func (t *ISP) Status() (byte, error) {
	if err := t.sendBytes(bufferPower); err != nil {
		return 0, err
	}
	return t.Device.RecvByte(TimeoutHash)
}

/*
 * @Description: 将 flash 页读入工作缓冲区
 * @param addr 页地址，低 7 位必须为 0
 * @return error
 */
func (t *ISP) LoadPage(addr uint16) error {
	if err := checkPage(addr); err != nil {
		return err
	}
	if err := t.sendBytes(bufferLoad, highByte(addr), lowByte(addr)); err != nil {
		return err
	}
	_, err := t.Device.RecvByte(TimeoutLoad)
	return err
}

/*
 * @Description: 将工作缓冲区写入 flash 页(擦除+编程)
 * @param addr 页地址
 * @return error
 */
func (t *ISP) StorePage(addr uint16) error {
	if err := checkPage(addr); err != nil {
		return err
	}
	if err := t.sendBytes(bufferStore, highByte(addr), lowByte(addr)); err != nil {
		return err
	}
	_, err := t.Device.RecvByte(TimeoutStore)
	return err
}

/*
 * @Description: 读取整页。每个字节最多尝试 retries 次，任一字节失败则整页失败，
 * 最后用设备校验值核对
 * @param addr 页地址
 * @return data 128 字节
 * @return error
 */
func (t *ISP) ReadPage(addr uint16) ([]byte, error) {
	if err := t.LoadPage(addr); err != nil {
		return nil, errors.WithMessagef(err, "load page 0x%04X", addr)
	}

	data := make([]byte, PageSize)
	for index := 0; index < PageSize; index++ {
		offset := byte(index)
		err := t.withRetry("read", offset, func() error {
			v, err := t.ReadBufferByte(offset)
			if err != nil {
				return err
			}
			data[offset] = v
			return nil
		})
		if err != nil {
			return nil, errors.WithMessagef(err, "read page 0x%04X", addr)
		}
	}

	if err := t.checkHash(addr, data); err != nil {
		return nil, err
	}
	return data, nil
}

/*
 * @Description: 写入整页。逐字节写入缓冲区(带重试)，校验值一致后才写入 flash
 * @param addr 页地址
 * @param data 必须为 128 字节
 * @return error
 */
func (t *ISP) WritePage(addr uint16, data []byte) error {
	if len(data) != PageSize {
		return errors.Wrapf(ErrPageSizeMismatch, "got %d bytes, want %d", len(data), PageSize)
	}
	if err := checkPage(addr); err != nil {
		return err
	}

	for index := 0; index < PageSize; index++ {
		offset := byte(index)
		err := t.withRetry("write", offset, func() error {
			return t.WriteBufferByte(offset, data[offset])
		})
		if err != nil {
			return errors.WithMessagef(err, "write page 0x%04X", addr)
		}
	}

	if err := t.checkHash(addr, data); err != nil {
		return err
	}
	if err := t.StorePage(addr); err != nil {
		return errors.WithMessagef(err, "store page 0x%04X", addr)
	}
	return nil
}

func (t *ISP) checkHash(addr uint16, data []byte) error {
	device, err := t.HashBuffer()
	if err != nil {
		return errors.WithMessagef(err, "hash page 0x%04X", addr)
	}
	local := XorshiftHash(data)
	if device != local {
		return &HashMismatchError{Page: addr, Device: device, Local: local}
	}
	return nil
}

// withRetry 从子命令字节开始整体重发。固件只对参数格式错误的 "s" 回 "!"，
// 因此失败时引导程序中不会残留半条子命令
func (t *ISP) withRetry(op string, offset byte, fn func() error) error {
	attempts, err := retry(t.retries, fn, func(attempt int, err error) {
		t.log.Warn("retrying", "op", op, "offset", offset, "attempt", attempt, "err", err)
	})
	if err == nil {
		return nil
	}
	if isTransient(err) {
		return &RetryError{Op: op, Offset: offset, Attempts: attempts, Err: err}
	}
	return err
}

func checkPage(addr uint16) error {
	if addr%PageSize != 0 {
		return errors.Wrapf(ErrUnalignedPage, "address 0x%04X", addr)
	}
	return nil
}
