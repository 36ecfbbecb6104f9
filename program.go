package isp

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/tocurd/xfr-isp/ihex"
)

// Progress 每处理完一页报告一次
type Progress struct {
	// Phase "program" / "verify" / "dump"
	Phase string

	// Page 当前页地址
	Page uint16

	// Current 已完成页数
	Current int

	// Total 总页数
	Total int

	Elapsed time.Duration
}

type ProgressCallback func(Progress)

// Stats 一次 program/verify 的统计
type Stats struct {
	Pages  int
	Merged int // 读-改-写的页数
	Bytes  int // 镜像中指定的字节数
}

// Programmer 按页编程/校验，遇到第一个失败的页就停止
type Programmer struct {
	pages    PageReadWriter
	log      Logger
	progress ProgressCallback
}

func NewProgrammer(pages PageReadWriter, opts ...Option) *Programmer {
	cfg := newConfig(opts)
	return &Programmer{pages: pages, log: cfg.Logger, progress: cfg.ProgressCallback}
}

/*
 * @Description: 按地址升序写入每一页。页中有未指定字节时先读出设备内容补齐
 * @param ctx 只在页之间检查
 * @param img
 * @return Stats
 * @return error
 */
func (p *Programmer) Program(ctx context.Context, img *ihex.Image) (Stats, error) {
	start := time.Now()
	pages := img.Pages()
	stats := Stats{Pages: len(pages), Bytes: img.Size()}

	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return stats, errors.Wrap(err, "program cancelled")
		}

		data := page.Bytes(0xFF)
		if !page.Complete() {
			current, err := p.pages.ReadPage(page.Address)
			if err != nil {
				return stats, errors.WithMessagef(err, "merge page 0x%04X", page.Address)
			}
			if len(current) != PageSize {
				return stats, errors.Wrapf(ErrPageSizeMismatch, "page 0x%04X read %d bytes", page.Address, len(current))
			}
			if data, err = page.Merge(current); err != nil {
				return stats, err
			}
			stats.Merged++
		}

		if err := p.pages.WritePage(page.Address, data); err != nil {
			return stats, errors.WithMessagef(err, "program page 0x%04X", page.Address)
		}
		p.log.Debug("page written", "page", page.Address, "unknown", page.Unknown())
		p.report("program", page.Address, i+1, len(pages), start)
	}

	p.log.Info("program complete", "pages", stats.Pages, "merged", stats.Merged, "bytes", stats.Bytes,
		"elapsed", time.Since(start).String())
	return stats, nil
}

/*
 * @Description: 读出每一页，只比较镜像中指定的字节
 * @param ctx
 * @param img
 * @return Stats
 * @return error 第一处不一致为 *VerifyError
 */
func (p *Programmer) Verify(ctx context.Context, img *ihex.Image) (Stats, error) {
	start := time.Now()
	pages := img.Pages()
	stats := Stats{Pages: len(pages), Bytes: img.Size()}

	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return stats, errors.Wrap(err, "verify cancelled")
		}

		current, err := p.pages.ReadPage(page.Address)
		if err != nil {
			return stats, errors.WithMessagef(err, "verify page 0x%04X", page.Address)
		}
		if len(current) != PageSize {
			return stats, errors.Wrapf(ErrPageSizeMismatch, "page 0x%04X read %d bytes", page.Address, len(current))
		}
		for offset, slot := range page.Slots {
			if slot.Known && slot.Value != current[offset] {
				return stats, &VerifyError{
					Page:     page.Address,
					Offset:   byte(offset),
					Expected: slot.Value,
					Actual:   current[offset],
				}
			}
		}
		p.report("verify", page.Address, i+1, len(pages), start)
	}

	p.log.Info("verify complete", "pages", stats.Pages, "bytes", stats.Bytes,
		"elapsed", time.Since(start).String())
	return stats, nil
}

/*
 * @Description: 读出 [addr, addr+length) 覆盖的页，写成 Intel HEX
 * @param ctx
 * @param addr 起始地址，可以不对齐
 * @param length 字节数
 * @param w 为 nil 时只返回数据
 * @return []byte
 * @return error
 */
func (p *Programmer) Dump(ctx context.Context, addr uint16, length int, w io.Writer) ([]byte, error) {
	if length <= 0 {
		return nil, errors.Errorf("invalid dump length %d", length)
	}
	end := int(addr) + length
	if end > 0x10000 {
		return nil, errors.Errorf("dump range 0x%04X+%d exceeds 16-bit address space", addr, length)
	}

	start := time.Now()
	first := int(addr) &^ (PageSize - 1)
	total := (end - first + PageSize - 1) / PageSize
	buf := make([]byte, 0, total*PageSize)

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "dump cancelled")
		}
		page := uint16(first + i*PageSize)
		data, err := p.pages.ReadPage(page)
		if err != nil {
			return nil, errors.WithMessagef(err, "dump page 0x%04X", page)
		}
		if len(data) != PageSize {
			return nil, errors.Wrapf(ErrPageSizeMismatch, "page 0x%04X read %d bytes", page, len(data))
		}
		buf = append(buf, data...)
		p.report("dump", page, i+1, total, start)
	}

	data := buf[int(addr)-first : end-first]
	if w != nil {
		if err := ihex.Dump(w, addr, data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func (p *Programmer) report(phase string, page uint16, current, total int, start time.Time) {
	if p.progress != nil {
		p.progress(Progress{
			Phase:   phase,
			Page:    page,
			Current: current,
			Total:   total,
			Elapsed: time.Since(start),
		})
	}
}
