package server

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rocketball/internal/config"
	"rocketball/internal/metrics"
	"rocketball/pkg/core"
	"rocketball/pkg/protocol"
)

// MaxPlayers 一场比赛的车辆数
const MaxPlayers = 2

// Match 一场比赛：单 goroutine 驱动权威模拟与快照下发
// 所有状态变更都发生在 Run 循环里，外部只通过 channel 交互。
type Match struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *config.Config
	log    zerolog.Logger
	meter  *metrics.Metrics

	clock         *core.TickClock
	lastProcessed int64

	engines map[int32]*EntityEngine
	ball    core.BallState

	sessions     map[int32]Session
	nextPlayerID int32
	matchID      string

	joinCh      chan joinRequest
	reconnectCh chan reconnectRequest
	inputCh     chan inputEvent
	leaveCh     chan int32
}

type joinRequest struct {
	sess   Session
	name   string
	respCh chan error
}

type reconnectRequest struct {
	sess     Session
	playerID int32
	respCh   chan error
}

type inputEvent struct {
	playerID int32
	samples  []core.InputSample
}

func NewMatch(parent context.Context, cfg *config.Config, log zerolog.Logger, meter *metrics.Metrics) *Match {
	ctx, cancel := context.WithCancel(parent)
	if meter == nil {
		meter = metrics.Nop()
	}

	return &Match{
		ctx:           ctx,
		cancel:        cancel,
		cfg:           cfg,
		log:           log.With().Str("component", "match").Logger(),
		meter:         meter,
		clock:         core.NewTickClock(cfg.Step()),
		lastProcessed: -1,
		engines:       make(map[int32]*EntityEngine),
		ball:          core.NewBallState(),
		sessions:      make(map[int32]Session),
		nextPlayerID:  1,
		matchID:       fmt.Sprintf("match-%d", time.Now().UnixNano()),
		joinCh:        make(chan joinRequest),
		reconnectCh:   make(chan reconnectRequest),
		inputCh:       make(chan inputEvent, 256),
		leaveCh:       make(chan int32, 256),
	}
}

func (m *Match) Run(wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(m.cfg.Step())
	defer ticker.Stop()

	m.log.Info().Int("tick_rate", m.cfg.TickRate).Msg("比赛循环启动")

	for {
		select {
		case <-m.ctx.Done():
			m.closeAllSessions()
			m.log.Info().Msg("比赛循环停止")
			return

		case req := <-m.joinCh:
			m.handleJoin(req)

		case req := <-m.reconnectCh:
			m.handleReconnect(req)

		case ev := <-m.inputCh:
			m.handleInput(ev)

		case playerID := <-m.leaveCh:
			m.handleLeave(playerID)

		case <-ticker.C:
			m.advance()
		}
	}
}

func (m *Match) Shutdown() {
	m.cancel()
}

// CurrentTick 权威时钟的当前 tick
func (m *Match) CurrentTick() int64 {
	return m.clock.CurrentTick()
}

// Join 同步加入：在比赛循环里分配玩家并回发 JoinAccept
func (m *Match) Join(sess Session, name string) error {
	respCh := make(chan error, 1)

	select {
	case <-m.ctx.Done():
		return fmt.Errorf("比赛已关闭")
	case m.joinCh <- joinRequest{sess: sess, name: name, respCh: respCh}:
	}

	select {
	case <-m.ctx.Done():
		return fmt.Errorf("比赛已关闭")
	case err := <-respCh:
		return err
	}
}

// Reconnect 凭校验过的 playerID 把新连接绑回原实体
func (m *Match) Reconnect(sess Session, playerID int32) error {
	respCh := make(chan error, 1)

	select {
	case <-m.ctx.Done():
		return fmt.Errorf("比赛已关闭")
	case m.reconnectCh <- reconnectRequest{sess: sess, playerID: playerID, respCh: respCh}:
	}

	select {
	case <-m.ctx.Done():
		return fmt.Errorf("比赛已关闭")
	case err := <-respCh:
		return err
	}
}

func (m *Match) EnqueueInput(playerID int32, samples []core.InputSample) {
	select {
	case <-m.ctx.Done():
		return
	case m.inputCh <- inputEvent{playerID: playerID, samples: samples}:
	}
}

func (m *Match) Leave(playerID int32) {
	select {
	case <-m.ctx.Done():
		return
	case m.leaveCh <- playerID:
	}
}

// MatchID 当前比赛标识，签进会话 Token 防止跨场重连
func (m *Match) MatchID() string {
	return m.matchID
}

// advance 把模拟追到时钟当前 tick
// ticker 抖动或停顿后一次补齐多步，保证 tick 序列无空洞。
func (m *Match) advance() {
	target := m.clock.CurrentTick()
	// 用配置推导的精确步长，和客户端预测的 dt 逐位一致
	dt := m.cfg.StepSeconds()

	for t := m.lastProcessed + 1; t <= target; t++ {
		m.stepTick(t, dt)
	}
	m.lastProcessed = target
}

func (m *Match) stepTick(tick int64, dt float64) {
	// 先推车，再推球，最后解车球碰撞
	for _, e := range m.engines {
		e.Step(tick, dt)
	}

	m.ball = core.StepBall(m.ball, dt)
	for _, e := range m.engines {
		m.ball = core.ResolveCarBallContact(e.State(), m.ball)
	}
	m.ball.Tick = tick

	if tick%int64(m.cfg.OwnerSnapshotInterval) == 0 {
		m.sendOwnerSnapshots()
	}
	if tick%int64(m.cfg.RemoteBroadcastInterval) == 0 {
		m.broadcastRemoteSnapshots()
		m.broadcastBall()
	}
}

// sendOwnerSnapshots 给每个车主单播自己车的完整权威快照
func (m *Match) sendOwnerSnapshots() {
	for playerID, sess := range m.sessions {
		engine, ok := m.engines[playerID]
		if !ok {
			continue
		}
		data, err := protocol.NewCarSnapshot(engine.State())
		if err != nil {
			m.log.Warn().Err(err).Msg("序列化车辆快照失败")
			continue
		}
		if err := sess.Send(data); err != nil {
			m.log.Debug().Err(err).Int32("player", playerID).Msg("发送车辆快照失败")
		}
	}
}

// broadcastRemoteSnapshots 给非车主广播精简快照
func (m *Match) broadcastRemoteSnapshots() {
	for playerID, engine := range m.engines {
		s := engine.State()
		data, err := protocol.NewRemoteCarSnapshot(protocol.RemoteCarSnapshot{
			Tick:            s.Tick,
			PlayerID:        playerID,
			Position:        s.Position,
			Rotation:        s.Rotation,
			LinearVelocity:  s.LinearVelocity,
			AngularVelocity: s.AngularVelocity,
		})
		if err != nil {
			m.log.Warn().Err(err).Msg("序列化远端快照失败")
			continue
		}

		for otherID, sess := range m.sessions {
			if otherID == playerID {
				continue
			}
			if err := sess.Send(data); err != nil {
				m.log.Debug().Err(err).Int32("player", otherID).Msg("发送远端快照失败")
			}
		}
	}
}

func (m *Match) broadcastBall() {
	data, err := protocol.NewBallSnapshot(m.ball)
	if err != nil {
		m.log.Warn().Err(err).Msg("序列化球快照失败")
		return
	}
	for playerID, sess := range m.sessions {
		if err := sess.Send(data); err != nil {
			m.log.Debug().Err(err).Int32("player", playerID).Msg("发送球快照失败")
		}
	}
}

func (m *Match) handleJoin(req joinRequest) {
	if len(m.sessions) >= MaxPlayers {
		req.respCh <- fmt.Errorf("比赛已满 (%d/%d)", len(m.sessions), MaxPlayers)
		return
	}

	playerID := m.nextPlayerID
	m.nextPlayerID++

	spawn, yaw := spawnPose(playerID)
	m.engines[playerID] = NewEntityEngine(playerID, spawn, yaw, m.cfg.BufferCapacity, m.meter)

	req.sess.SetPlayerID(playerID)
	m.sessions[playerID] = req.sess

	token, err := GenerateSessionToken(m.cfg.JWTSecret, playerID, m.matchID)
	if err != nil {
		m.dropPlayer(playerID, req.sess)
		req.respCh <- fmt.Errorf("签发会话 Token 失败: %w", err)
		return
	}

	data, err := protocol.NewJoinAccept(m.clock.CurrentTick(), playerID, token)
	if err != nil {
		m.dropPlayer(playerID, req.sess)
		req.respCh <- fmt.Errorf("序列化加入确认失败: %w", err)
		return
	}
	if err := req.sess.Send(data); err != nil {
		m.dropPlayer(playerID, req.sess)
		req.respCh <- fmt.Errorf("发送加入确认失败: %w", err)
		return
	}

	m.log.Info().
		Int32("player", playerID).
		Str("name", req.name).
		Int("players", len(m.sessions)).
		Msg("玩家加入")

	req.respCh <- nil
}

func (m *Match) handleReconnect(req reconnectRequest) {
	engine, ok := m.engines[req.playerID]
	if !ok {
		req.respCh <- fmt.Errorf("玩家 %d 的实体不存在", req.playerID)
		return
	}

	// 旧连接还挂着就先顶掉，不触发移除实体
	if old, ok := m.sessions[req.playerID]; ok && old != req.sess {
		old.CloseWithoutNotify()
	}

	req.sess.SetPlayerID(req.playerID)
	m.sessions[req.playerID] = req.sess

	// 重连沿用原 Token 周期，不续签
	data, err := protocol.NewJoinAccept(m.clock.CurrentTick(), req.playerID, "")
	if err != nil {
		req.respCh <- fmt.Errorf("序列化重连确认失败: %w", err)
		return
	}
	if err := req.sess.Send(data); err != nil {
		req.respCh <- fmt.Errorf("发送重连确认失败: %w", err)
		return
	}

	m.log.Info().
		Int32("player", req.playerID).
		Str("phase", engine.Phase().String()).
		Msg("玩家重连")

	req.respCh <- nil
}

func (m *Match) handleInput(ev inputEvent) {
	engine, ok := m.engines[ev.playerID]
	if !ok {
		return
	}
	engine.SubmitInput(ev.samples)
}

func (m *Match) handleLeave(playerID int32) {
	if _, ok := m.sessions[playerID]; !ok {
		return
	}

	// 断线只摘掉会话，实体与历史保留到 Token 过期，等重连
	delete(m.sessions, playerID)

	m.log.Info().
		Int32("player", playerID).
		Int("players", len(m.sessions)).
		Msg("玩家断开，保留实体等待重连")
}

func (m *Match) dropPlayer(playerID int32, sess Session) {
	delete(m.engines, playerID)
	delete(m.sessions, playerID)
	sess.SetPlayerID(-1)
}

func (m *Match) closeAllSessions() {
	for _, sess := range m.sessions {
		sess.CloseWithoutNotify()
	}
}

// spawnPose 玩家出生位姿：两辆车在半场两端相向
func spawnPose(playerID int32) (core.Vec3, float64) {
	if playerID%2 == 1 {
		return core.Vec3{X: 0, Y: core.CarRestHeight, Z: -core.ArenaHalfLength * 0.6}, 0
	}
	return core.Vec3{X: 0, Y: core.CarRestHeight, Z: core.ArenaHalfLength * 0.6}, math.Pi
}
