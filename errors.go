package isp

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// 应答首字符无法识别，主机与固件协议不一致
	ErrProtocolDesync = errors.New("protocol desync")
	// 设备返回 "!"
	ErrDeviceRejected = errors.New("device rejected command")
	// 应答内容不是期望的十六进制值
	ErrMalformedPayload = errors.New("malformed payload")
	ErrTooManyRetries   = errors.New("too many retries")
	ErrHashMismatch     = errors.New("hash mismatch")
	ErrPageSizeMismatch = errors.New("page size mismatch")
	ErrVerifyMismatch   = errors.New("verify mismatch")
	ErrUnalignedPage    = errors.New("page address not aligned")
	ErrOffsetRange      = errors.New("buffer offset out of range")
	// 串口在设定的超时时间内没有收到任何数据
	ErrReadTimeout = errors.New("read timeout")
)

// RetryError 单字节操作连续失败 Attempts 次
type RetryError struct {
	Op       string
	Offset   byte
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%s offset 0x%02X failed after %d attempts: %v", e.Op, e.Offset, e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

func (e *RetryError) Is(target error) bool { return target == ErrTooManyRetries }

// HashMismatchError 设备缓冲区校验值与本地计算值不一致
type HashMismatchError struct {
	Page   uint16
	Device byte
	Local  byte
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("hash mismatch on page 0x%04X: device 0x%02X, local 0x%02X", e.Page, e.Device, e.Local)
}

func (e *HashMismatchError) Is(target error) bool { return target == ErrHashMismatch }

// VerifyError 校验时设备内容与镜像不一致
type VerifyError struct {
	Page     uint16
	Offset   byte
	Expected byte
	Actual   byte
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verify failed at 0x%04X (page 0x%04X offset 0x%02X): expected 0x%02X, got 0x%02X",
		e.Page+uint16(e.Offset), e.Page, e.Offset, e.Expected, e.Actual)
}

func (e *VerifyError) Is(target error) bool { return target == ErrVerifyMismatch }

// 可在本层重试的错误
func isTransient(err error) bool {
	return errors.Is(err, ErrDeviceRejected) || errors.Is(err, ErrReadTimeout)
}
