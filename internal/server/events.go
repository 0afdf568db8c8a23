package server

import "rocketball/pkg/core"

type EventKind int

const (
	EventUnknown EventKind = iota
	EventJoin
	EventReconnect
	EventInput
	EventPing
)

type JoinEvent struct {
	Name string
}

type ReconnectEvent struct {
	SessionToken string
}

type InputEvent struct {
	PlayerID int32
	Samples  []core.InputSample
}

type PingEvent struct {
	ClientTime int64
}

type ServerEvent struct {
	Kind      EventKind
	Join      *JoinEvent
	Reconnect *ReconnectEvent
	Input     *InputEvent
	Ping      *PingEvent
}
