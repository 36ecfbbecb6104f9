// Package ihex 读取 Intel HEX 文件并按 flash 页打包
package ihex

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

type RecordType byte

const (
	TypeData         RecordType = 0x00
	TypeEOF          RecordType = 0x01
	TypeStartSegment RecordType = 0x03
)

var (
	ErrMalformedRecord       = errors.New("malformed record")
	ErrUnsupportedRecordType = errors.New("unsupported record type")
	ErrChecksum              = errors.New("record checksum mismatch")
)

// Record 一条数据记录
type Record struct {
	Address uint16
	Data    []byte
}

// RecordError 带行号的解析错误
type RecordError struct {
	Line int
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Reader 逐行解码，只返回数据记录，EOF 与起始段地址记录被忽略
type Reader struct {
	// Strict 为 true 时校验每行的校验和
	Strict bool

	scanner *bufio.Scanner
	line    int
}

func NewReader(r io.Reader) *Reader {
	return &Reader{scanner: bufio.NewScanner(r)}
}

/*
 * @Description: 读取下一条数据记录，结束时返回 io.EOF
 * @return Record
 * @return error
 */
func (r *Reader) Next() (Record, error) {
	for r.scanner.Scan() {
		r.line++
		text := strings.TrimSpace(r.scanner.Text())
		if text == "" {
			continue
		}
		rec, typ, err := r.parseLine(text)
		if err != nil {
			return Record{}, &RecordError{Line: r.line, Err: err}
		}
		if typ == TypeData {
			return rec, nil
		}
	}
	if err := r.scanner.Err(); err != nil {
		return Record{}, errors.Wrap(err, "read hex")
	}
	return Record{}, io.EOF
}

func (r *Reader) parseLine(text string) (Record, RecordType, error) {
	if text[0] != ':' {
		return Record{}, 0, errors.Wrapf(ErrMalformedRecord, "missing ':' in %q", text)
	}
	// 长度(1) 地址(2) 类型(1) ... 校验(1)
	if len(text) < 11 {
		return Record{}, 0, errors.Wrapf(ErrMalformedRecord, "record too short %q", text)
	}
	raw, err := hex.DecodeString(text[1:])
	if err != nil {
		return Record{}, 0, errors.Wrapf(ErrMalformedRecord, "%q: %v", text, err)
	}
	count := int(raw[0])
	if len(raw) < count+5 {
		return Record{}, 0, errors.Wrapf(ErrMalformedRecord, "byte count %d exceeds record %q", count, text)
	}
	if r.Strict {
		sum := byte(0)
		for _, b := range raw[:count+5] {
			sum += b
		}
		if sum != 0 {
			return Record{}, 0, errors.Wrapf(ErrChecksum, "%q", text)
		}
	}

	typ := RecordType(raw[3])
	switch typ {
	case TypeData:
		data := make([]byte, count)
		copy(data, raw[4:4+count])
		return Record{Address: uint16(raw[1])<<8 | uint16(raw[2]), Data: data}, typ, nil
	case TypeEOF, TypeStartSegment:
		return Record{}, typ, nil
	}
	return Record{}, typ, errors.Wrapf(ErrUnsupportedRecordType, "type 0x%02X", byte(typ))
}

// ReadAll 读取全部数据记录
func ReadAll(r io.Reader, strict bool) ([]Record, error) {
	reader := NewReader(r)
	reader.Strict = strict
	var records []Record
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}

/*
 * @Description: 读取 HEX 文件并打包成页
 * @param path
 * @param strict 是否校验校验和
 * @return *Image
 * @return error
 */
func Load(path string, strict bool) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open hex")
	}
	defer f.Close()

	records, err := ReadAll(f, strict)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	return Pack(records), nil
}
