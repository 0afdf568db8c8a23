package server

// Session 连接在比赛循环侧的抽象（便于测试时替换）
type Session interface {
	ID() int32
	Send(data []byte) error
	Close()
	CloseWithoutNotify()
	SetPlayerID(id int32)
}
