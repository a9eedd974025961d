package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/gocrud/ginject/logging"
)

// Host 运行 http.Server 的托管服务
type Host struct {
	listen string
	server *http.Server
	logger logging.Logger
	addr   atomic.Pointer[string]
}

func (h *Host) Name() string { return "web" }

// Address 实际监听地址，Start 之前为空
func (h *Host) Address() string {
	if p := h.addr.Load(); p != nil {
		return *p
	}
	return ""
}

// Server 返回底层 http.Server，Start 之前可以调整其字段
func (h *Host) Server() *http.Server {
	return h.server
}

// Start 监听并服务，直到 Stop 或出错
func (h *Host) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.listen)
	if err != nil {
		return fmt.Errorf("web: listen %s: %w", h.listen, err)
	}
	addr := ln.Addr().String()
	h.addr.Store(&addr)
	h.logger.Info("web host started", logging.F("address", addr))

	err = h.server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	h.logger.Error("web host error", logging.Err(err))
	return err
}

// Stop 优雅关闭，等待进行中的请求直到 ctx 到期
func (h *Host) Stop(ctx context.Context) error {
	if err := h.server.Shutdown(ctx); err != nil {
		h.logger.Error("web host shutdown", logging.Err(err))
		return err
	}
	h.logger.Info("web host stopped")
	return nil
}
