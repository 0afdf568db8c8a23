package core

// DefaultRingCapacity 默认环形缓冲区容量
// 必须大于最坏情况下的往返 tick 距离（60Hz 下 1024 tick ≈ 17 秒余量）
const DefaultRingCapacity = 1024

type ringSlot[T any] struct {
	tick  int64
	valid bool
	value T
}

// RingBuffer 按 tick 取模索引的固定容量环形缓冲区
// 槽位在一个完整周期后被覆盖；读取时校验槽内 tick 戳，
// 戳不匹配即视为过期数据，这是对陈旧槽位读取的唯一防线。
// 每个缓冲区只允许一个逻辑写入方，写入后的条目不再原地修改。
type RingBuffer[T any] struct {
	slots []ringSlot[T]
}

// NewRingBuffer 创建环形缓冲区；容量必须为正
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		panic("core: 环形缓冲区容量必须为正")
	}
	return &RingBuffer[T]{slots: make([]ringSlot[T], capacity)}
}

// Put 将 tick 对应的值写入 tick mod capacity 槽位
func (rb *RingBuffer[T]) Put(tick int64, v T) {
	idx := rb.index(tick)
	rb.slots[idx] = ringSlot[T]{tick: tick, valid: true, value: v}
}

// Get 读取 tick 对应槽位；槽内戳与 tick 不符时返回 false
func (rb *RingBuffer[T]) Get(tick int64) (T, bool) {
	idx := rb.index(tick)
	s := rb.slots[idx]
	if !s.valid || s.tick != tick {
		var zero T
		return zero, false
	}
	return s.value, true
}

// Capacity 返回缓冲区容量
func (rb *RingBuffer[T]) Capacity() int {
	return len(rb.slots)
}

func (rb *RingBuffer[T]) index(tick int64) int64 {
	n := int64(len(rb.slots))
	idx := tick % n
	if idx < 0 {
		idx += n
	}
	return idx
}
