package ihex

import (
	"io"

	"github.com/marcinbor85/gohex"
	"github.com/pkg/errors"
)

// 每行数据字节数
const DumpLineLength = 16

// Dump 将从 base 开始的数据写成 Intel HEX
func Dump(w io.Writer, base uint16, data []byte) error {
	mem := gohex.NewMemory()
	if err := mem.AddBinary(uint32(base), data); err != nil {
		return errors.Wrap(err, "add binary")
	}
	if err := mem.DumpIntelHex(w, DumpLineLength); err != nil {
		return errors.Wrap(err, "dump intel hex")
	}
	return nil
}
