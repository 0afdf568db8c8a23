package server

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"rocketball/pkg/protocol"
)

const (
	readTimeout  = 5 * time.Second // 读取超时
	writeTimeout = 1 * time.Second // 写入超时

	heartbeatInterval = 5 * time.Second
	heartbeatTimeout  = 15 * time.Second

	// 每秒最多接受的输入包数：正常节奏是 tick_rate / input_send_divisor，
	// 超出的视为洪泛直接丢弃
	inputRateLimit = 120
	inputRateBurst = 16
)

var ErrSendQueueFull = errors.New("发送队列满")

// Connection 表示一个客户端连接
type Connection struct {
	conn     net.Conn
	server   *GameServer
	log      zerolog.Logger
	playerID atomic.Int32

	// 发送队列
	sendChan chan []byte
	closeCh  chan struct{}
	closed   bool
	closeMu  sync.Mutex

	inputLimiter *rate.Limiter
	lastRecvTime atomic.Value
}

// NewConnection 创建新连接
func NewConnection(conn net.Conn, server *GameServer) *Connection {
	c := &Connection{
		conn:         conn,
		server:       server,
		log:          server.log.With().Str("remote", conn.RemoteAddr().String()).Logger(),
		sendChan:     make(chan []byte, 256),
		closeCh:      make(chan struct{}),
		inputLimiter: rate.NewLimiter(inputRateLimit, inputRateBurst),
	}
	c.playerID.Store(-1) // -1 表示未分配
	c.lastRecvTime.Store(time.Now())
	return c
}

// Handle 处理连接
func (c *Connection) Handle(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	c.log.Debug().Msg("连接处理开始")

	wg.Add(1)
	go c.watchHeartbeat(ctx, wg)

	// 启动发送循环
	wg.Add(1)
	go c.sendLoop(ctx, wg)

	// 启动接收循环
	wg.Add(1)
	go c.receiveLoop(ctx, wg)

	// 等待上下文取消或连接关闭
	select {
	case <-ctx.Done():
	case <-c.closeCh:
	}

	c.Close()
}

// Close 关闭连接
func (c *Connection) Close() {
	c.closeWithNotify(true)
}

// CloseWithoutNotify 关闭连接但不触发移除玩家逻辑（重连接管时用）
func (c *Connection) CloseWithoutNotify() {
	c.closeWithNotify(false)
}

func (c *Connection) closeWithNotify(notify bool) {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.closeCh)

	if c.conn != nil {
		c.conn.Close()
	}

	close(c.sendChan)

	// 从服务器移除玩家
	if notify {
		if playerID := c.ID(); playerID >= 0 {
			c.server.removePlayer(playerID)
		}
	}

	c.log.Debug().Int32("player", c.ID()).Msg("连接已关闭")
}

// Send 发送数据（异步）
func (c *Connection) Send(data []byte) error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return errors.New("连接已关闭")
	}

	select {
	case c.sendChan <- data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// sendLoop 发送循环
func (c *Connection) sendLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case data, ok := <-c.sendChan:
			if !ok {
				return
			}

			// 发送数据长度前缀（4 字节）
			length := uint32(len(data))
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := binary.Write(c.conn, binary.BigEndian, length); err != nil {
				c.log.Warn().Err(err).Msg("发送长度失败")
				c.Close()
				return
			}

			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if _, err := c.conn.Write(data); err != nil {
				c.log.Warn().Err(err).Msg("发送数据失败")
				c.Close()
				return
			}
		}
	}
}

// receiveLoop 接收循环
func (c *Connection) receiveLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		default:
			// 读取消息长度（4 字节）
			var length uint32
			_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
			if err := binary.Read(c.conn, binary.BigEndian, &length); err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					// 游戏中输入流不断，超时即视为掉线；交给心跳判定
					continue
				}
				if err != io.EOF {
					c.log.Warn().Err(err).Msg("读取长度失败")
				}
				c.Close()
				return
			}

			if length > protocol.MaxPacketSize {
				c.log.Warn().Uint32("bytes", length).Msg("消息过大")
				c.Close()
				return
			}

			if length == 0 {
				continue
			}

			data := make([]byte, length)
			_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
			if _, err := io.ReadFull(c.conn, data); err != nil {
				c.log.Warn().Err(err).Msg("读取数据失败")
				c.Close()
				return
			}

			c.lastRecvTime.Store(time.Now())
			if err := c.handleMessage(data); err != nil {
				c.log.Warn().Err(err).Msg("处理消息失败")
			}
		}
	}
}

// handleMessage 处理接收到的消息
func (c *Connection) handleMessage(data []byte) error {
	event, err := DecodePacket(data)
	if err != nil {
		return fmt.Errorf("反序列化失败: %w", err)
	}

	switch event.Kind {
	case EventJoin:
		if c.ID() >= 0 {
			return fmt.Errorf("玩家 %d 重复加入请求", c.ID())
		}
		if err := c.server.handleJoinRequest(c, event.Join); err != nil {
			return fmt.Errorf("处理加入请求失败: %w", err)
		}
		c.log.Info().Int32("player", c.ID()).Msg("加入成功")

	case EventReconnect:
		if err := c.server.handleReconnect(c, event.Reconnect); err != nil {
			return fmt.Errorf("处理重连请求失败: %w", err)
		}
		c.log.Info().Int32("player", c.ID()).Msg("重连成功")

	case EventInput:
		if c.ID() < 0 {
			return errors.New("未加入的连接发送输入")
		}
		if !c.inputLimiter.Allow() {
			// 输入洪泛：静默丢弃
			return nil
		}
		event.Input.PlayerID = c.ID()
		c.server.handleClientInput(c.ID(), event.Input)

	case EventPing:
		c.handlePing(event.Ping)

	default:
		return errors.New("未知消息类型")
	}

	return nil
}

// handlePing 应答时间同步探测：回传客户端时间并附上服务端时间与 tick
func (c *Connection) handlePing(ping *PingEvent) {
	data, err := protocol.NewPong(ping.ClientTime, time.Now().UnixMilli(), c.server.CurrentTick())
	if err != nil {
		return
	}
	_ = c.Send(data)
}

func (c *Connection) watchHeartbeat(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closeCh:
			return
		case <-ticker.C:
			lastRecv, _ := c.lastRecvTime.Load().(time.Time)
			if !lastRecv.IsZero() && time.Since(lastRecv) > heartbeatTimeout {
				c.log.Info().Int32("player", c.ID()).Msg("心跳超时")
				c.Close()
				return
			}
		}
	}
}

// String 返回连接的字符串表示
func (c *Connection) String() string {
	if c.ID() >= 0 {
		return fmt.Sprintf("Connection{%d, %s}", c.ID(), c.conn.RemoteAddr())
	}
	return fmt.Sprintf("Connection{%s}", c.conn.RemoteAddr())
}

func (c *Connection) ID() int32 {
	return c.playerID.Load()
}

func (c *Connection) SetPlayerID(playerID int32) {
	c.playerID.Store(playerID)
}
