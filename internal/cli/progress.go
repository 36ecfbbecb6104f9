package cli

import (
	"io"

	"github.com/schollz/progressbar/v3"

	isp "github.com/tocurd/xfr-isp"
)

// progressBar 每个阶段(program/verify/dump)一个进度条
type progressBar struct {
	w     io.Writer
	phase string
	bar   *progressbar.ProgressBar
}

func newProgressBar(w io.Writer) *progressBar {
	return &progressBar{w: w}
}

func (p *progressBar) update(pr isp.Progress) {
	if p.bar == nil || p.phase != pr.Phase {
		p.finish()
		p.phase = pr.Phase
		p.bar = progressbar.NewOptions(pr.Total,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription(pr.Phase),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("pages"),
		)
	}
	_ = p.bar.Set(pr.Current)
}

func (p *progressBar) finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
		io.WriteString(p.w, "\n")
		p.bar = nil
	}
}
