package isp

type Interface interface {
	// 读取目标工作缓冲区中的一个字节
	ReadBufferByte(offset byte) (byte, error)

	// 写入目标工作缓冲区中的一个字节
	WriteBufferByte(offset byte, value byte) error

	// 获取工作缓冲区校验值
	HashBuffer() (byte, error)

	// 获取目标电源电压比例
	Status() (byte, error)

	// 将一页 flash 读入工作缓冲区
	LoadPage(addr uint16) error

	// 将工作缓冲区写入一页 flash
	StorePage(addr uint16) error

	// 读取整页
	ReadPage(addr uint16) ([]byte, error)

	// 写入整页
	WritePage(addr uint16, data []byte) error
}

// PageReadWriter 编排器只需要整页读写
type PageReadWriter interface {
	ReadPage(addr uint16) ([]byte, error)
	WritePage(addr uint16, data []byte) error
}

var _ Interface = (*ISP)(nil)
