package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"crudflow/config"
	"crudflow/logging"
)

// Component 随应用启停的后台组件，例如 messaging.Transport
type Component interface {
	Start(ctx context.Context) error
	Close() error
}

// SetupFunc 装配依赖并返回 HTTP 处理器；可通过 app 注册组件与关闭回调
type SetupFunc func(ctx context.Context, app *App) (http.Handler, error)

// App 基于 net/http 的 IServer 实现
type App struct {
	name   string
	cfg    config.ServerConfig
	setup  SetupFunc
	logger logging.Logger

	mu         sync.Mutex
	components []Component
	started    []Component
	closers    []func() error
	srv        *http.Server
	listener   net.Listener
	ready      chan struct{}
}

var _ IServer = (*App)(nil)

// NewApp 创建应用
func NewApp(name string, cfg config.ServerConfig, setup SetupFunc, logger logging.Logger) *App {
	return &App{
		name:   name,
		cfg:    cfg,
		setup:  setup,
		logger: logging.ComponentLogger(logger, "server").WithFields(logging.String("service", name)),
		ready:  make(chan struct{}),
	}
}

func (a *App) Name() string { return a.name }

// AddComponent 注册后台组件，StartBackgroundTasks 时按注册顺序启动，关闭时逆序
func (a *App) AddComponent(c Component) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.components = append(a.components, c)
}

// OnClose 注册关闭回调（数据库连接等），在组件关闭之后逆序执行
func (a *App) OnClose(fn func() error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closers = append(a.closers, fn)
}

func (a *App) LoadConfig() error {
	if a.setup == nil {
		return errors.New("setup function is required")
	}
	if a.cfg.Port < 0 || a.cfg.Port > 65535 {
		return fmt.Errorf("invalid port %d", a.cfg.Port)
	}
	return nil
}

func (a *App) SetupDependencies(ctx context.Context) error {
	handler, err := a.setup(ctx, a)
	if err != nil {
		return err
	}
	if handler == nil {
		return errors.New("setup returned nil handler")
	}
	a.srv = &http.Server{
		Addr:         a.cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
	}
	return nil
}

func (a *App) StartBackgroundTasks(ctx context.Context) error {
	a.mu.Lock()
	components := append([]Component(nil), a.components...)
	a.mu.Unlock()

	for _, c := range components {
		if err := c.Start(ctx); err != nil {
			return fmt.Errorf("start %T: %w", c, err)
		}
		a.mu.Lock()
		a.started = append(a.started, c)
		a.mu.Unlock()
	}
	return nil
}

// Run 监听并服务，Shutdown 后返回 nil
func (a *App) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", a.srv.Addr)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.listener = l
	a.mu.Unlock()
	close(a.ready)

	a.logger.Info(ctx, "http listening", logging.String("addr", l.Addr().String()))
	if err := a.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr 等待监听就绪后返回实际地址（端口为 0 时有用）
func (a *App) Addr(ctx context.Context) (string, error) {
	select {
	case <-a.ready:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listener.Addr().String(), nil
}

func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.srv != nil {
		if err := a.srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop HTTP server: %w", err))
		}
	}

	a.mu.Lock()
	started := a.started
	closers := a.closers
	a.started, a.closers = nil, nil
	a.mu.Unlock()

	for i := len(started) - 1; i >= 0; i-- {
		if err := started[i].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %T: %w", started[i], err))
		}
	}
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
