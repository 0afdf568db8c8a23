package client

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionSwapConcurrentWithPings(t *testing.T) {
	// 重连在主循环换连接时，ping 循环还在并发读同一个字段。
	// 用 -race 跑：指针换用普通赋值的话这里必然报竞态。
	c := &GameClient{}
	first := &NetworkClient{}
	second := &NetworkClient{}
	c.nc.Store(first)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 10000; i++ {
			nc := c.net()
			assert.NotNil(t, nc)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 10000; i++ {
			if i%2 == 0 {
				c.nc.Store(second)
			} else {
				c.nc.Store(first)
			}
		}
	}()
	wg.Wait()

	assert.Contains(t, []*NetworkClient{first, second}, c.net())
}
