package storageopt

import "sync/atomic"

// ProbeCounter 节点探测计数器。
type ProbeCounter struct {
	probes atomic.Int64
	errors atomic.Int64
}

func (c *ProbeCounter) Inc()      { c.probes.Add(1) }
func (c *ProbeCounter) IncError() { c.errors.Add(1) }

func (c *ProbeCounter) Probes() int64 { return c.probes.Load() }
func (c *ProbeCounter) Errors() int64 { return c.errors.Load() }

// SlowCommandCounter 慢命令计数器。
type SlowCommandCounter struct {
	count atomic.Int64
}

func (s *SlowCommandCounter) Inc()         { s.count.Add(1) }
func (s *SlowCommandCounter) Count() int64 { return s.count.Load() }
