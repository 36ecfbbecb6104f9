package isp

import (
	"fmt"
	"io"
)

// Operation 会话可执行的操作，由命令行层选择
type Operation int

const (
	OpVersion Operation = iota
	OpStatus
	OpRead
	OpWrite
	OpHash
	OpReadPage
	OpWritePage
	OpProgram
	OpVerify
	OpDump
)

var operationNames = map[Operation]string{
	OpVersion:   "version",
	OpStatus:    "status",
	OpRead:      "read",
	OpWrite:     "write",
	OpHash:      "hash",
	OpReadPage:  "read-page",
	OpWritePage: "write-page",
	OpProgram:   "program",
	OpVerify:    "verify",
	OpDump:      "dump",
}

func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Operation(%d)", int(o))
}

// 需要先加载 HEX 文件的操作
func (o Operation) usesImage() bool {
	return o == OpProgram || o == OpVerify
}

// Request 各字段只对相应的操作有意义
type Request struct {
	Op Operation

	// OpRead / OpWrite 缓冲区偏移
	Offset byte

	// OpWrite
	Value byte

	// OpReadPage / OpWritePage / OpDump
	Address uint16

	// OpWritePage，128 字节
	Data []byte

	// OpDump 字节数
	Length int

	// OpProgram / OpVerify 的 HEX 文件
	Path string

	// OpProgram 完成后再校验一遍
	Verify bool

	// OpDump 输出，可为 nil
	Output io.Writer
}

type Result struct {
	Version string
	Value   byte
	Data    []byte
	Stats   Stats
}
