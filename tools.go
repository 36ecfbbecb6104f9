package isp

import (
	"math/bits"
	"strconv"

	"github.com/pkg/errors"
)

/*
 * @Description: 与目标固件一致的滚动校验: h = rotl8(h, 1) ^ b
 * @param data
 * @return byte
 */
func XorshiftHash(data []byte) byte {
	h := byte(0)
	for index := 0; index < len(data); index++ {
		h = bits.RotateLeft8(h, 1) ^ data[index]
	}
	return h
}

// 取负载开头的两位十六进制
func parseHexByte(payload string) (byte, error) {
	if len(payload) < 2 {
		return 0, errors.Wrapf(ErrMalformedPayload, "payload %q too short", payload)
	}
	v, err := strconv.ParseUint(payload[:2], 16, 8)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedPayload, "payload %q", payload)
	}
	return byte(v), nil
}

func highByte(v uint16) byte { return byte(v >> 8) }
func lowByte(v uint16) byte  { return byte(v) }

/*
 * @Description: 执行 fn，遇到可恢复错误时重试，最多 attempts 次
 * @return 最后一次错误
 */
func retry(attempts int, fn func() error, onRetry func(attempt int, err error)) (int, error) {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return attempt, nil
		}
		if !isTransient(err) {
			return attempt, err
		}
		if attempt < attempts && onRetry != nil {
			onRetry(attempt, err)
		}
	}
	return attempts, err
}
