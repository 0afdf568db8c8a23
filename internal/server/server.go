package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"rocketball/internal/config"
	"rocketball/internal/metrics"
)

// GameServer 游戏服务器：监听、接受连接并把事件路由到比赛循环
type GameServer struct {
	cfg   *config.Config
	log   zerolog.Logger
	meter *metrics.Metrics

	match *Match

	listener ServerListener

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	shutdown chan struct{}
}

// NewGameServer 创建新的游戏服务器
func NewGameServer(cfg *config.Config, log zerolog.Logger, meter *metrics.Metrics) *GameServer {
	ctx, cancel := context.WithCancel(context.Background())
	if meter == nil {
		meter = metrics.Nop()
	}

	return &GameServer{
		cfg:      cfg,
		log:      log.With().Str("component", "server").Logger(),
		meter:    meter,
		ctx:      ctx,
		cancel:   cancel,
		shutdown: make(chan struct{}),
	}
}

// Start 启动服务器，阻塞到 Shutdown 被调用
func (s *GameServer) Start() error {
	s.log.Info().Str("addr", s.cfg.Addr).Str("proto", s.cfg.Proto).Msg("启动游戏服务器")

	listener, err := newListener(s.cfg.Proto, s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("监听失败: %w", err)
	}
	s.listener = listener

	s.log.Info().Str("addr", listener.Addr().String()).Msg("服务器监听中")

	s.match = NewMatch(s.ctx, s.cfg, s.log, s.meter)

	// 启动比赛循环
	s.wg.Add(1)
	go s.match.Run(&s.wg)

	// 启动连接接受循环
	s.wg.Add(1)
	go s.acceptLoop()

	<-s.shutdown

	s.log.Info().Msg("服务器正在关闭")
	return nil
}

// Shutdown 优雅关闭服务器
func (s *GameServer) Shutdown() {
	s.log.Info().Msg("正在关闭服务器")

	s.cancel()

	if s.match != nil {
		s.match.Shutdown()
	}

	if s.listener != nil {
		s.listener.Close()
	}

	close(s.shutdown)

	s.wg.Wait()

	s.log.Info().Msg("服务器已关闭")
}

// acceptLoop 接受客户端连接
func (s *GameServer) acceptLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			s.log.Info().Msg("停止接受新连接")
			return
		default:
		}

		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				s.log.Warn().Err(err).Msg("接受连接失败")
				continue
			}
		}

		s.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("新连接")

		connection := NewConnection(conn, s)

		s.wg.Add(1)
		go connection.Handle(s.ctx, &s.wg)
	}
}

// CurrentTick 权威时钟的当前 tick（未开场时为 0）
func (s *GameServer) CurrentTick() int64 {
	if s.match == nil {
		return 0
	}
	return s.match.CurrentTick()
}

// handleJoinRequest 处理加入请求
func (s *GameServer) handleJoinRequest(conn *Connection, req *JoinEvent) error {
	if s.match == nil {
		return fmt.Errorf("比赛未初始化")
	}
	return s.match.Join(conn, req.Name)
}

// handleReconnect 处理重连请求：校验 Token 后交给比赛循环接管
func (s *GameServer) handleReconnect(conn *Connection, req *ReconnectEvent) error {
	if s.match == nil {
		return fmt.Errorf("比赛未初始化")
	}

	playerID, matchID, err := VerifySessionToken(s.cfg.JWTSecret, req.SessionToken)
	if err != nil {
		return fmt.Errorf("会话 Token 校验失败: %w", err)
	}
	if matchID != s.match.MatchID() {
		return fmt.Errorf("会话属于其他比赛")
	}

	return s.match.Reconnect(conn, playerID)
}

// handleClientInput 处理客户端输入
func (s *GameServer) handleClientInput(playerID int32, input *InputEvent) {
	if s.match == nil {
		return
	}
	s.match.EnqueueInput(playerID, input.Samples)
}

// removePlayer 移除玩家
func (s *GameServer) removePlayer(playerID int32) {
	if s.match == nil {
		return
	}
	s.match.Leave(playerID)
}
