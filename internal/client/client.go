package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"rocketball/internal/config"
	"rocketball/internal/metrics"
	"rocketball/pkg/core"
	"rocketball/pkg/protocol"
)

// pingInterval 时间同步探测周期
// 开局密集探测尽快收敛，之后放缓维持偏移估计。
const (
	pingIntervalWarmup = 100 * time.Millisecond
	pingInterval       = 500 * time.Millisecond
	warmupPings        = 10
)

// InputSource 输入采集边界：由嵌入方（渲染层或脚本）提供原始轴状态
type InputSource interface {
	Sample() core.AxisState
}

// GameClient 客户端装配：时钟同步、本地预测、对账与远端复制
// tick 推进、对账、复制器更新都在 Run 循环单 goroutine 内进行，
// 网络收发在 NetworkClient 自己的 goroutine 里，以 channel 交接。
// nc 用原子指针：重连在 Run 循环里换连接时，ping 循环还在并发读它。
type GameClient struct {
	cfg   *config.Config
	log   zerolog.Logger
	meter *metrics.Metrics

	nc        atomic.Pointer[NetworkClient]
	clock     *core.TickClock
	clockSync *ClockSync

	pred  *PredictionEngine
	recon *Reconciler

	remotes map[int32]*CarReplicator
	remMu   sync.RWMutex
	ball    *BallReplicator

	input    InputSource
	lastTick int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewGameClient 创建客户端
func NewGameClient(cfg *config.Config, input InputSource, log zerolog.Logger, meter *metrics.Metrics) *GameClient {
	ctx, cancel := context.WithCancel(context.Background())
	if meter == nil {
		meter = metrics.Nop()
	}

	clock := core.NewTickClock(cfg.Step())
	repCfg := ReplicatorConfig{
		StepSeconds:       cfg.StepSeconds(),
		InterpMinDuration: cfg.InterpMinDuration,
		ExtrapMaxDuration: cfg.ExtrapMaxDuration,
	}

	c := &GameClient{
		cfg:       cfg,
		log:       log.With().Str("component", "client").Logger(),
		meter:     meter,
		clock:     clock,
		clockSync: NewClockSync(clock),
		remotes:   make(map[int32]*CarReplicator),
		ball:      NewBallReplicator(repCfg),
		input:     input,
		lastTick:  -1,
		ctx:       ctx,
		cancel:    cancel,
	}
	c.nc.Store(NewNetworkClient(cfg.Addr, cfg.Proto, log))
	return c
}

// net 当前网络连接，重连后指向新实例
func (c *GameClient) net() *NetworkClient {
	return c.nc.Load()
}

// Connect 连接服务器并完成加入握手
func (c *GameClient) Connect(name string) error {
	if err := c.net().Connect(name); err != nil {
		return err
	}

	// 加入确认的 tick 先做粗对齐，ping/pong 收敛后覆盖
	c.clock.SetOffset(c.net().JoinTick() - c.clock.RawTick())

	spawn := core.NewCarState(core.Vec3{Y: core.CarRestHeight}, 0)
	c.pred = NewPredictionEngine(c.net().PlayerID(), spawn, c.cfg.BufferCapacity, c.cfg.InputWindow)
	c.recon = NewReconciler(ReconcilerConfig{
		PositionTolerance: c.cfg.PositionTolerance,
		RotationTolerance: c.cfg.RotationTolerance,
		HardSnapThreshold: c.cfg.HardSnapThreshold,
		BlendFactor:       c.cfg.BlendFactor,
		StepSeconds:       c.cfg.StepSeconds(),
	}, c.pred, c.log, c.meter)

	return nil
}

// Run 主循环，阻塞到 Close 或网络出错
func (c *GameClient) Run() error {
	c.wg.Add(1)
	go c.pingLoop()

	ticker := time.NewTicker(c.cfg.Step())
	defer ticker.Stop()

	c.log.Info().Int32("player", c.net().PlayerID()).Msg("客户端主循环启动")

	for {
		select {
		case <-c.ctx.Done():
			return nil

		case <-ticker.C:
			if err := c.net().Err(); err != nil {
				c.log.Warn().Err(err).Msg("网络异常，尝试重连")
				if rerr := c.reconnect(); rerr != nil {
					return fmt.Errorf("重连失败: %w", rerr)
				}
				continue
			}
			c.frame()
		}
	}
}

// Close 关闭客户端
func (c *GameClient) Close() {
	c.cancel()
	c.wg.Wait()
	c.net().Close()
	c.log.Info().Msg("客户端已关闭")
}

// frame 一个 ticker 周期：先消化网络消息，再把预测追到当前 tick
func (c *GameClient) frame() {
	c.drainNetwork()

	dt := c.cfg.StepSeconds()
	target := c.clock.CurrentTick()

	for t := c.lastTick + 1; t <= target; t++ {
		axes := c.input.Sample()
		c.pred.Observe(axes.Jump)
		c.pred.Advance(t, axes, dt)

		if t%int64(c.cfg.InputSendDivisor) == 0 {
			c.sendInputs(t)
		}
	}
	if target > c.lastTick {
		elapsed := float64(target-c.lastTick) * dt
		c.advanceReplicators(elapsed)
		c.lastTick = target
	}
}

func (c *GameClient) drainNetwork() {
	for {
		pong := c.net().ReceivePong()
		if pong == nil {
			break
		}
		c.clockSync.OnPong(pong.ClientTime, pong.ServerTick, time.Now())
	}

	for {
		snap := c.net().ReceiveCarSnapshot()
		if snap == nil {
			break
		}
		c.recon.Reconcile(snap.State)
	}

	for {
		snap := c.net().ReceiveRemoteCarSnapshot()
		if snap == nil {
			break
		}
		c.remoteFor(snap.PlayerID).OnSnapshot(RemotePose{
			Tick:            snap.Tick,
			Position:        snap.Position,
			Rotation:        snap.Rotation,
			LinearVelocity:  snap.LinearVelocity,
			AngularVelocity: snap.AngularVelocity,
		})
	}

	for {
		snap := c.net().ReceiveBallSnapshot()
		if snap == nil {
			break
		}
		c.ball.OnSnapshot(snap.State)
	}
}

func (c *GameClient) sendInputs(tick int64) {
	window := c.pred.Window(tick)
	if len(window) == 0 {
		return
	}
	data, err := protocol.NewInputBatch(window)
	if err != nil {
		c.log.Warn().Err(err).Msg("序列化输入批次失败")
		return
	}
	if err := c.net().SendInputBatch(data); err != nil {
		c.log.Debug().Err(err).Msg("发送输入批次失败")
	}
}

func (c *GameClient) advanceReplicators(elapsed float64) {
	c.remMu.RLock()
	for _, rep := range c.remotes {
		rep.Advance(elapsed)
	}
	c.remMu.RUnlock()
	c.ball.Advance(elapsed)
}

func (c *GameClient) remoteFor(playerID int32) *CarReplicator {
	c.remMu.RLock()
	rep, ok := c.remotes[playerID]
	c.remMu.RUnlock()
	if ok {
		return rep
	}

	c.remMu.Lock()
	defer c.remMu.Unlock()
	if rep, ok = c.remotes[playerID]; ok {
		return rep
	}
	rep = NewCarReplicator(playerID, ReplicatorConfig{
		StepSeconds:       c.cfg.StepSeconds(),
		InterpMinDuration: c.cfg.InterpMinDuration,
		ExtrapMaxDuration: c.cfg.ExtrapMaxDuration,
	})
	c.remotes[playerID] = rep
	return rep
}

// pingLoop 周期性发送时间同步探测
func (c *GameClient) pingLoop() {
	defer c.wg.Done()

	sent := 0
	timer := time.NewTimer(pingIntervalWarmup)
	defer timer.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-timer.C:
			if err := c.net().SendPing(); err != nil {
				c.log.Debug().Err(err).Msg("发送 ping 失败")
			}
			sent++
			if sent < warmupPings {
				timer.Reset(pingIntervalWarmup)
			} else {
				timer.Reset(pingInterval)
			}
		}
	}
}

// reconnect 凭会话 Token 重建连接并绑回原实体
func (c *GameClient) reconnect() error {
	old := c.net()
	token := old.SessionToken()
	if token == "" {
		return fmt.Errorf("没有会话 Token")
	}

	nc := NewNetworkClient(c.cfg.Addr, c.cfg.Proto, c.log)
	if err := nc.Reconnect(token); err != nil {
		return err
	}
	// 先换指针再关旧连接，ping 循环任何时刻读到的都是可用实例
	c.nc.Store(nc)
	old.Close()

	// 重新粗对齐，ping 会很快把偏移修回来
	c.clock.SetOffset(nc.JoinTick() - c.clock.RawTick())
	c.lastTick = c.clock.CurrentTick()

	c.log.Info().Int32("player", nc.PlayerID()).Msg("重连完成")
	return nil
}

// ========== 渲染侧读取 ==========

// LocalCar 本地车的当前预测状态
func (c *GameClient) LocalCar() core.CarState {
	return c.pred.LiveState()
}

// RemoteCar 指定远端车的显示位姿
func (c *GameClient) RemoteCar(playerID int32) (RemotePose, bool) {
	c.remMu.RLock()
	rep, ok := c.remotes[playerID]
	c.remMu.RUnlock()
	if !ok || !rep.Primed() {
		return RemotePose{}, false
	}
	return rep.Advance(0), true
}

// Ball 球的当前显示状态
func (c *GameClient) Ball() (core.BallState, bool) {
	if !c.ball.Primed() {
		return core.BallState{}, false
	}
	return c.ball.Advance(0), true
}

// PlayerID 本地玩家 ID
func (c *GameClient) PlayerID() int32 {
	return c.net().PlayerID()
}

// Synced 时钟是否已完成同步
func (c *GameClient) Synced() bool {
	return c.clockSync.Synced()
}
