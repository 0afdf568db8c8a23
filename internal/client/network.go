package client

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	kcp "github.com/xtaci/kcp-go/v5"

	"rocketball/pkg/protocol"
)

// NetworkClient 网络客户端：连接管理、收发循环与按类型分发
type NetworkClient struct {
	conn       net.Conn
	serverAddr string
	proto      string
	log        zerolog.Logger

	playerID     int32
	sessionToken string
	joinTick     int64

	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	// 消息队列（按类型分发，满了丢旧保新）
	joinAcceptCh chan *protocol.JoinAccept
	carSnapCh    chan *protocol.CarSnapshot
	remoteSnapCh chan *protocol.RemoteCarSnapshot
	ballSnapCh   chan *protocol.BallSnapshot
	pongCh       chan *protocol.Pong

	sendChan chan []byte
	errChan  chan error
}

// NewNetworkClient 创建网络客户端
func NewNetworkClient(serverAddr, proto string, log zerolog.Logger) *NetworkClient {
	ctx, cancel := context.WithCancel(context.Background())

	return &NetworkClient{
		serverAddr:   serverAddr,
		proto:        proto,
		log:          log.With().Str("component", "network").Logger(),
		playerID:     -1,
		ctx:          ctx,
		cancel:       cancel,
		joinAcceptCh: make(chan *protocol.JoinAccept, 1),
		carSnapCh:    make(chan *protocol.CarSnapshot, 64),
		remoteSnapCh: make(chan *protocol.RemoteCarSnapshot, 64),
		ballSnapCh:   make(chan *protocol.BallSnapshot, 64),
		pongCh:       make(chan *protocol.Pong, 16),
		sendChan:     make(chan []byte, 256),
		errChan:      make(chan error, 1),
	}
}

// Connect 连接服务器并完成加入握手
func (nc *NetworkClient) Connect(name string) error {
	if err := nc.establish(); err != nil {
		return err
	}

	data, err := protocol.NewJoinRequest(name)
	if err != nil {
		nc.Close()
		return fmt.Errorf("序列化加入请求失败: %w", err)
	}
	if err := nc.sendMessage(data); err != nil {
		nc.Close()
		return fmt.Errorf("发送加入请求失败: %w", err)
	}

	return nc.awaitAccept()
}

// Reconnect 凭会话 Token 重连并绑回原实体
func (nc *NetworkClient) Reconnect(token string) error {
	if err := nc.establish(); err != nil {
		return err
	}

	data, err := protocol.NewReconnectRequest(token)
	if err != nil {
		nc.Close()
		return fmt.Errorf("序列化重连请求失败: %w", err)
	}
	if err := nc.sendMessage(data); err != nil {
		nc.Close()
		return fmt.Errorf("发送重连请求失败: %w", err)
	}

	if err := nc.awaitAccept(); err != nil {
		return err
	}
	// 重连不换 Token
	nc.sessionToken = token
	return nil
}

func (nc *NetworkClient) establish() error {
	nc.log.Info().Str("addr", nc.serverAddr).Str("proto", nc.proto).Msg("连接服务器")

	conn, err := nc.dial()
	if err != nil {
		return fmt.Errorf("连接服务器失败: %w", err)
	}

	nc.conn = conn
	nc.connected = true

	nc.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("已连接")

	nc.wg.Add(1)
	go nc.receiveLoop()

	nc.wg.Add(1)
	go nc.sendLoop()

	return nil
}

func (nc *NetworkClient) awaitAccept() error {
	select {
	case accept := <-nc.joinAcceptCh:
		nc.playerID = accept.PlayerID
		nc.joinTick = accept.Tick
		if accept.Token != "" {
			nc.sessionToken = accept.Token
		}
		nc.log.Info().Int32("player", nc.playerID).Int64("tick", nc.joinTick).Msg("加入确认")
		return nil

	case err := <-nc.errChan:
		nc.Close()
		return err

	case <-time.After(10 * time.Second):
		nc.Close()
		return errors.New("等待加入确认超时")
	}
}

func (nc *NetworkClient) dial() (net.Conn, error) {
	switch nc.proto {
	case "", "tcp":
		conn, err := net.DialTimeout("tcp", nc.serverAddr, 5*time.Second)
		if err != nil {
			return nil, err
		}
		if tcpConn, ok := conn.(*net.TCPConn); ok {
			tcpConn.SetNoDelay(true)
		}
		return conn, nil
	case "kcp":
		return kcp.DialWithOptions(nc.serverAddr, nil, 0, 0)
	case "ws":
		url := fmt.Sprintf("ws://%s/ws", nc.serverAddr)
		ws, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			return nil, err
		}
		return newWSConn(ws), nil
	default:
		return nil, fmt.Errorf("不支持的协议: %s", nc.proto)
	}
}

// Close 关闭连接
func (nc *NetworkClient) Close() {
	if !nc.connected {
		return
	}

	nc.connected = false
	nc.cancel()

	if nc.conn != nil {
		nc.conn.Close()
	}

	nc.wg.Wait()

	nc.log.Info().Msg("网络客户端已关闭")
}

func (nc *NetworkClient) PlayerID() int32 {
	return nc.playerID
}

// SessionToken 服务端签发的会话 Token，断线后用于重连
func (nc *NetworkClient) SessionToken() string {
	return nc.sessionToken
}

// JoinTick 加入确认时服务端的 tick，作为时钟同步前的粗对齐
func (nc *NetworkClient) JoinTick() int64 {
	return nc.joinTick
}

func (nc *NetworkClient) IsConnected() bool {
	return nc.connected
}

// ========== 消息接收 ==========

func (nc *NetworkClient) receiveLoop() {
	defer nc.wg.Done()

	for {
		select {
		case <-nc.ctx.Done():
			return

		default:
			var length uint32
			if err := binary.Read(nc.conn, binary.BigEndian, &length); err != nil {
				if !errors.Is(err, io.EOF) {
					nc.reportError(fmt.Errorf("读取长度失败: %w", err))
				}
				return
			}

			if length > protocol.MaxPacketSize {
				nc.reportError(fmt.Errorf("消息过大 (%d bytes)", length))
				return
			}

			if length == 0 {
				continue
			}

			data := make([]byte, length)
			if _, err := io.ReadFull(nc.conn, data); err != nil {
				nc.reportError(fmt.Errorf("读取数据失败: %w", err))
				return
			}

			if err := nc.handleMessage(data); err != nil {
				nc.log.Warn().Err(err).Msg("处理消息失败")
			}
		}
	}
}

func (nc *NetworkClient) handleMessage(data []byte) error {
	pkt, err := protocol.UnmarshalPacket(data)
	if err != nil {
		return fmt.Errorf("反序列化失败: %w", err)
	}

	switch pkt.Type {
	case protocol.MsgJoinAccept:
		accept, err := protocol.ParseJoinAccept(pkt)
		if err != nil {
			return err
		}
		select {
		case nc.joinAcceptCh <- accept:
		default:
		}

	case protocol.MsgCarSnapshot:
		snap, err := protocol.ParseCarSnapshot(pkt)
		if err != nil {
			return err
		}
		pushLatest(nc.carSnapCh, snap)

	case protocol.MsgRemoteCarSnapshot:
		snap, err := protocol.ParseRemoteCarSnapshot(pkt)
		if err != nil {
			return err
		}
		pushLatest(nc.remoteSnapCh, snap)

	case protocol.MsgBallSnapshot:
		snap, err := protocol.ParseBallSnapshot(pkt)
		if err != nil {
			return err
		}
		pushLatest(nc.ballSnapCh, snap)

	case protocol.MsgPong:
		pong, err := protocol.ParsePong(pkt)
		if err != nil {
			return err
		}
		pushLatest(nc.pongCh, pong)

	default:
		return fmt.Errorf("未知消息类型: %s", pkt.Type)
	}

	return nil
}

// pushLatest 入队；队列满时挤掉最旧的一条，快照永远保新
func pushLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

func (nc *NetworkClient) reportError(err error) {
	select {
	case nc.errChan <- err:
	default:
	}
}

// ========== 消息发送 ==========

func (nc *NetworkClient) sendLoop() {
	defer nc.wg.Done()

	for {
		select {
		case <-nc.ctx.Done():
			return

		case data := <-nc.sendChan:
			length := uint32(len(data))
			if err := binary.Write(nc.conn, binary.BigEndian, length); err != nil {
				nc.reportError(fmt.Errorf("发送长度失败: %w", err))
				return
			}
			if _, err := nc.conn.Write(data); err != nil {
				nc.reportError(fmt.Errorf("发送数据失败: %w", err))
				return
			}
		}
	}
}

func (nc *NetworkClient) sendMessage(data []byte) error {
	select {
	case nc.sendChan <- data:
		return nil
	default:
		return errors.New("发送队列满")
	}
}

// SendInputBatch 发送输入冗余窗口
func (nc *NetworkClient) SendInputBatch(data []byte) error {
	if !nc.connected {
		return errors.New("未连接")
	}
	return nc.sendMessage(data)
}

// SendPing 发送时间同步探测
func (nc *NetworkClient) SendPing() error {
	if !nc.connected {
		return errors.New("未连接")
	}
	data, err := protocol.NewPing(time.Now().UnixMilli())
	if err != nil {
		return err
	}
	return nc.sendMessage(data)
}

// ========== 非阻塞接收 ==========

func (nc *NetworkClient) ReceiveCarSnapshot() *protocol.CarSnapshot {
	select {
	case snap := <-nc.carSnapCh:
		return snap
	default:
		return nil
	}
}

func (nc *NetworkClient) ReceiveRemoteCarSnapshot() *protocol.RemoteCarSnapshot {
	select {
	case snap := <-nc.remoteSnapCh:
		return snap
	default:
		return nil
	}
}

func (nc *NetworkClient) ReceiveBallSnapshot() *protocol.BallSnapshot {
	select {
	case snap := <-nc.ballSnapCh:
		return snap
	default:
		return nil
	}
}

func (nc *NetworkClient) ReceivePong() *protocol.Pong {
	select {
	case pong := <-nc.pongCh:
		return pong
	default:
		return nil
	}
}

// Err 返回首个网络错误（非阻塞）
func (nc *NetworkClient) Err() error {
	select {
	case err := <-nc.errChan:
		return err
	default:
		return nil
	}
}

// ========== WebSocket 适配 ==========

// wsConn 在 websocket 二进制消息流上实现 net.Conn
type wsConn struct {
	ws     *websocket.Conn
	reader io.Reader
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{ws: ws}
}

func (c *wsConn) Read(b []byte) (int, error) {
	for {
		if c.reader == nil {
			_, r, err := c.ws.NextReader()
			if err != nil {
				return 0, err
			}
			c.reader = r
		}
		n, err := c.reader.Read(b)
		if n > 0 {
			return n, nil
		}
		if err != nil {
			c.reader = nil
			continue
		}
		return 0, nil
	}
}

func (c *wsConn) Write(b []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (c *wsConn) Close() error { return c.ws.Close() }

func (c *wsConn) LocalAddr() net.Addr { return c.ws.LocalAddr() }

func (c *wsConn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

func (c *wsConn) SetReadDeadline(t time.Time) error { return c.ws.SetReadDeadline(t) }

func (c *wsConn) SetWriteDeadline(t time.Time) error { return c.ws.SetWriteDeadline(t) }

func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}
