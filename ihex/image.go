package ihex

import (
	"sort"

	"github.com/pkg/errors"
)

const PageSize = 128

// Slot 页中的一个字节，Known 为 false 表示镜像未指定
type Slot struct {
	Value byte
	Known bool
}

type Page struct {
	Address uint16
	Slots   [PageSize]Slot
}

// Unknown 未指定字节的个数
func (p *Page) Unknown() int {
	n := 0
	for _, s := range p.Slots {
		if !s.Known {
			n++
		}
	}
	return n
}

func (p *Page) Complete() bool {
	return p.Unknown() == 0
}

// Bytes 已指定的字节，未指定的填 fill
func (p *Page) Bytes(fill byte) []byte {
	data := make([]byte, PageSize)
	for i, s := range p.Slots {
		if s.Known {
			data[i] = s.Value
		} else {
			data[i] = fill
		}
	}
	return data
}

// Merge 用 current(设备当前内容)补齐未指定的字节
func (p *Page) Merge(current []byte) ([]byte, error) {
	if len(current) != PageSize {
		return nil, errors.Errorf("merge page 0x%04X: got %d bytes, want %d", p.Address, len(current), PageSize)
	}
	data := make([]byte, PageSize)
	for i, s := range p.Slots {
		if s.Known {
			data[i] = s.Value
		} else {
			data[i] = current[i]
		}
	}
	return data, nil
}

// Image 页地址 -> 页，只包含至少被一条记录覆盖的页
type Image struct {
	pages map[uint16]*Page
}

/*
 * @Description: 将记录映射到 128 字节页，地址重叠时后出现的记录覆盖前面的。
 * 地址按 16 位回绕
 * @param records
 * @return *Image
 */
func Pack(records []Record) *Image {
	img := &Image{pages: make(map[uint16]*Page)}
	for _, rec := range records {
		for i, b := range rec.Data {
			addr := rec.Address + uint16(i)
			base := addr &^ (PageSize - 1)
			page, ok := img.pages[base]
			if !ok {
				page = &Page{Address: base}
				img.pages[base] = page
			}
			page.Slots[addr&(PageSize-1)] = Slot{Value: b, Known: true}
		}
	}
	return img
}

func (img *Image) Len() int {
	return len(img.pages)
}

func (img *Image) Page(addr uint16) (*Page, bool) {
	p, ok := img.pages[addr]
	return p, ok
}

// Pages 按地址升序
func (img *Image) Pages() []*Page {
	pages := make([]*Page, 0, len(img.pages))
	for _, p := range img.pages {
		pages = append(pages, p)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Address < pages[j].Address })
	return pages
}

// Size 镜像中已指定的字节数
func (img *Image) Size() int {
	n := 0
	for _, p := range img.pages {
		n += PageSize - p.Unknown()
	}
	return n
}
