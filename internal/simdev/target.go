package simdev

import "math/bits"

// Hash 引导程序的缓冲区校验
func Hash(data []byte) byte {
	h := byte(0)
	for _, b := range data {
		h = bits.RotateLeft8(h, 1) ^ b
	}
	return h
}

// 每个子命令的参数个数
var subcommandArgs = map[byte]int{
	0x00: 1, // 读缓冲区: 偏移
	0x01: 2, // 写缓冲区: 偏移, 值
	0x02: 0, // 电源
	0x03: 0, // 校验
	0x04: 2, // 加载页: 高, 低
	0x05: 2, // 存储页: 高, 低
}

// target 把链路上收到的一个字节交给引导程序
func (d *Device) target(b byte) {
	d.pending = append(d.pending, b)
	n, ok := subcommandArgs[d.pending[0]]
	if !ok {
		d.pending = d.pending[:0]
		return
	}
	if len(d.pending) < n+1 {
		return
	}
	cmd := append([]byte(nil), d.pending...)
	d.pending = d.pending[:0]
	d.lastCmd = cmd
	d.execute(cmd)
}

func (d *Device) execute(cmd []byte) {
	switch cmd[0] {
	case 0x00:
		offset := cmd[1]
		if offset >= PageSize {
			return
		}
		v := d.Buffer[offset]
		if d.CorruptRead != nil {
			v = d.CorruptRead(offset, v)
		}
		d.send(v)
	case 0x01:
		offset, value := cmd[1], cmd[2]
		if offset >= PageSize {
			return
		}
		stored := value
		if d.CorruptWrite != nil {
			stored = d.CorruptWrite(offset, value)
		}
		d.Buffer[offset] = stored
		d.send(value)
	case 0x02:
		d.send(d.Power)
	case 0x03:
		d.send(Hash(d.Buffer[:]))
	case 0x04:
		addr := pageAddr(cmd[1], cmd[2])
		copy(d.Buffer[:], d.Flash[addr:addr+PageSize])
		d.Loads++
		d.send(PageSize)
	case 0x05:
		addr := pageAddr(cmd[1], cmd[2])
		if addr >= StoreLimit {
			return
		}
		copy(d.Flash[addr:addr+PageSize], d.Buffer[:])
		d.Stores++
		d.send(PageSize)
	}
}

func (d *Device) send(b byte) {
	d.reply = append(d.reply, b)
}

func pageAddr(hi, lo byte) int {
	addr := int(hi)<<8 | int(lo)
	return (addr &^ (PageSize - 1)) % FlashSize
}
