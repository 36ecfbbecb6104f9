package isp

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/tocurd/xfr-isp/ihex"
)

// Session 一次命令行调用：进入调试模式、执行操作、回到正常模式
type Session struct {
	Device     *Device
	ISP        *ISP
	Programmer *Programmer

	config Config
}

func NewSession(rw io.ReadWriter, opts ...Option) *Session {
	if rw == nil {
		panic("port cannot be nil")
	}
	cfg := newConfig(opts)
	device := NewDevice(NewChannel(rw, cfg.Logger))
	engine := NewISP(device, opts...)
	return &Session{
		Device:     device,
		ISP:        engine,
		Programmer: NewProgrammer(engine, opts...),
		config:     cfg,
	}
}

/*
 * @Description: 执行一个操作。HEX 文件在任何设备通信之前加载，
 * 进入正常模式在操作失败后也会尝试
 * @param ctx
 * @param req
 * @return *Result
 * @return error
 */
func (s *Session) Execute(ctx context.Context, req Request) (*Result, error) {
	var img *ihex.Image
	if req.Op.usesImage() {
		var err error
		if img, err = ihex.Load(req.Path, s.config.StrictHex); err != nil {
			return nil, err
		}
		s.config.Logger.Info("image loaded", "path", req.Path, "pages", img.Len(), "bytes", img.Size())
	}

	if err := s.begin(); err != nil {
		return nil, err
	}
	res, err := s.run(ctx, req, img)
	if endErr := s.end(); endErr != nil {
		if err == nil {
			return nil, endErr
		}
		s.config.Logger.Error("enter normal mode", "err", endErr)
	}
	if err != nil {
		return nil, errors.WithMessage(err, req.Op.String())
	}
	return res, nil
}

func (s *Session) run(ctx context.Context, req Request, img *ihex.Image) (*Result, error) {
	res := &Result{}
	var err error
	switch req.Op {
	case OpVersion:
		res.Version, err = s.Device.Version()
	case OpStatus:
		res.Value, err = s.ISP.Status()
	case OpRead:
		res.Value, err = s.ISP.ReadBufferByte(req.Offset)
	case OpWrite:
		err = s.ISP.WriteBufferByte(req.Offset, req.Value)
	case OpHash:
		res.Value, err = s.ISP.HashBuffer()
	case OpReadPage:
		res.Data, err = s.ISP.ReadPage(req.Address)
	case OpWritePage:
		err = s.ISP.WritePage(req.Address, req.Data)
	case OpProgram:
		res.Stats, err = s.Programmer.Program(ctx, img)
		// 统计保留编程阶段的(含合并页数)
		if err == nil && req.Verify {
			_, err = s.Programmer.Verify(ctx, img)
		}
	case OpVerify:
		res.Stats, err = s.Programmer.Verify(ctx, img)
	case OpDump:
		res.Data, err = s.Programmer.Dump(ctx, req.Address, req.Length, req.Output)
	default:
		err = errors.Errorf("unknown operation %v", req.Op)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Session) begin() error {
	if s.config.SkipDebug {
		return nil
	}
	s.config.Logger.Debug("entering debug mode")
	if err := s.Device.EnterDebugMode(); err != nil {
		return errors.WithMessage(err, "enter debug mode")
	}
	s.settle()
	return nil
}

func (s *Session) end() error {
	if s.config.SkipNormal {
		return nil
	}
	s.config.Logger.Debug("entering normal mode")
	if err := s.Device.EnterNormalMode(); err != nil {
		return errors.WithMessage(err, "enter normal mode")
	}
	s.settle()
	return nil
}

func (s *Session) settle() {
	if s.config.SettleDelay > 0 {
		time.Sleep(s.config.SettleDelay)
	}
}
