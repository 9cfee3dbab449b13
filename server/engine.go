package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"crudflow/logging"
)

// IServer 应用需要实现的生命周期步骤，由 Engine 按顺序调用。
type IServer interface {
	Name() string

	// LoadConfig 步骤 1：校验/补齐配置
	LoadConfig() error

	// SetupDependencies 步骤 2：连接数据库、构建服务与路由
	SetupDependencies(ctx context.Context) error

	// StartBackgroundTasks 步骤 3：启动消息传输等非阻塞任务
	StartBackgroundTasks(ctx context.Context) error

	// Run 步骤 4：运行主服务，阻塞直到服务停止
	Run(ctx context.Context) error

	// Shutdown 步骤 5：关闭 HTTP 服务并释放资源
	Shutdown(ctx context.Context) error
}

// Engine 编排启动流程：Init -> Setup -> Background -> Run -> Signal -> Shutdown
type Engine struct {
	server  IServer
	options *Options
	logger  logging.Logger
	state   atomic.Int32
}

// NewEngine 创建启动引擎
func NewEngine(server IServer, opts ...Option) *Engine {
	options := DefaultOptions()
	if name := server.Name(); name != "" {
		options.Name = name
	}
	for _, o := range opts {
		o(options)
	}
	return &Engine{
		server:  server,
		options: options,
		logger: logging.ComponentLogger(options.Logger, "server").
			WithFields(logging.String("service", options.Name)),
	}
}

// State 当前状态
func (e *Engine) State() State { return State(e.state.Load()) }

func (e *Engine) setState(s State) { e.state.Store(int32(s)) }

// Start 运行完整生命周期，直到收到 SIGINT/SIGTERM 或 Run 返回
func (e *Engine) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return e.Run(ctx)
}

// Run 与 Start 相同，但由 ctx 取消代替信号
func (e *Engine) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	e.logger.Info(ctx, "starting", logging.String("version", e.options.Version))

	e.setState(StateInitializing)
	if err := e.server.LoadConfig(); err != nil {
		e.setState(StateError)
		return fmt.Errorf("failed to load config: %w", err)
	}

	setupCtx, setupCancel := context.WithTimeout(ctx, e.options.StartupTimeout)
	defer setupCancel()
	if err := e.server.SetupDependencies(setupCtx); err != nil {
		e.setState(StateError)
		return fmt.Errorf("failed to setup dependencies: %w", err)
	}
	e.setState(StatePrepared)

	for _, hook := range e.options.OnBeforeStart {
		if err := hook(ctx); err != nil {
			e.setState(StateError)
			return fmt.Errorf("OnBeforeStart hook failed: %w", err)
		}
	}

	if err := e.server.StartBackgroundTasks(ctx); err != nil {
		e.setState(StateError)
		// 已装配的资源仍需释放
		e.shutdown()
		return fmt.Errorf("failed to start background tasks: %w", err)
	}

	e.setState(StateRunning)
	errChan := make(chan error, 1)
	go func() {
		e.logger.Info(ctx, "server is running")
		errChan <- e.server.Run(ctx)
	}()

	for _, hook := range e.options.OnAfterStart {
		if err := hook(ctx); err != nil {
			e.logger.Warn(ctx, "OnAfterStart hook failed", logging.Error(err))
		}
	}

	var runErr error
	select {
	case runErr = <-errChan:
		if runErr != nil {
			e.logger.Error(ctx, "server stopped with error", logging.Error(runErr))
		} else {
			e.logger.Info(ctx, "server stopped")
		}
	case <-ctx.Done():
		e.logger.Info(context.Background(), "shutdown requested", logging.Error(context.Cause(ctx)))
	}
	cancel()

	if err := e.shutdown(); err != nil {
		return err
	}
	if runErr != nil {
		e.setState(StateError)
		return fmt.Errorf("server execution error: %w", runErr)
	}
	e.setState(StateStopped)
	e.logger.Info(context.Background(), "shutdown complete")
	return nil
}

func (e *Engine) shutdown() error {
	if e.State() != StateError {
		e.setState(StateStopping)
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.options.ShutdownTimeout)
	defer cancel()

	for _, hook := range e.options.OnBeforeStop {
		if err := hook(ctx); err != nil {
			e.logger.Warn(ctx, "OnBeforeStop hook failed", logging.Error(err))
		}
	}
	if err := e.server.Shutdown(ctx); err != nil {
		e.setState(StateError)
		e.logger.Error(ctx, "shutdown error", logging.Error(err))
		return err
	}
	for _, hook := range e.options.OnAfterStop {
		if err := hook(ctx); err != nil {
			e.logger.Warn(ctx, "OnAfterStop hook failed", logging.Error(err))
		}
	}
	return nil
}
