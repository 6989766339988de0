package xreadpref

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// DefaultAcceptableLatency 默认可接受延迟窗口。
const DefaultAcceptableLatency = 15 * time.Millisecond

// TagSet 一组必须同时满足的标签键值。空集合匹配任意节点。
type TagSet map[string]string

// String 以 k=v 按键排序输出。
func (t TagSet) String() string {
	keys := slices.Sorted(maps.Keys(t))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + t[k]
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// ReadPref 读偏好。零值等价于 Default()。
type ReadPref struct {
	Mode Mode `koanf:"mode" json:"mode"`
	// TagSets 按序尝试，第一个有节点匹配的集合生效。
	TagSets []TagSet `koanf:"tag_sets" json:"tag_sets,omitempty"`
	// AcceptableLatency 为 0 时使用 DefaultAcceptableLatency。
	AcceptableLatency time.Duration `koanf:"acceptable_latency" json:"acceptable_latency,omitempty"`
}

// Option ReadPref 构造选项
type Option func(*ReadPref)

// WithTagSets 追加标签集。
func WithTagSets(sets ...TagSet) Option {
	return func(rp *ReadPref) {
		rp.TagSets = append(rp.TagSets, sets...)
	}
}

// WithAcceptableLatency 设置延迟窗口。
func WithAcceptableLatency(d time.Duration) Option {
	return func(rp *ReadPref) { rp.AcceptableLatency = d }
}

// New 构造并校验读偏好。
func New(mode Mode, opts ...Option) (ReadPref, error) {
	rp := ReadPref{Mode: mode}
	for _, opt := range opts {
		if opt != nil {
			opt(&rp)
		}
	}
	if err := rp.Validate(); err != nil {
		return ReadPref{}, err
	}
	return rp.normalized(), nil
}

// Default 返回 Primary 模式、默认延迟窗口的读偏好。
func Default() ReadPref {
	return ReadPref{Mode: Primary, AcceptableLatency: DefaultAcceptableLatency}
}

// Validate 校验模式、标签与延迟窗口。
func (rp ReadPref) Validate() error {
	if !rp.Mode.Valid() {
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidReadPref, uint8(rp.Mode))
	}
	if rp.AcceptableLatency < 0 {
		return fmt.Errorf("%w: negative acceptable latency %s", ErrInvalidReadPref, rp.AcceptableLatency)
	}
	if rp.Mode == Primary && len(rp.TagSets) > 0 {
		return fmt.Errorf("%w: tag sets are not allowed with mode primary", ErrInvalidReadPref)
	}
	for i, set := range rp.TagSets {
		for k := range set {
			if k == "" {
				return fmt.Errorf("%w: empty tag key in tag set %d", ErrInvalidReadPref, i)
			}
		}
	}
	return nil
}

// Window 返回生效的延迟窗口。
func (rp ReadPref) Window() time.Duration {
	if rp.AcceptableLatency == 0 {
		return DefaultAcceptableLatency
	}
	return rp.AcceptableLatency
}

func (rp ReadPref) normalized() ReadPref {
	rp.AcceptableLatency = rp.Window()
	if rp.TagSets != nil {
		sets := make([]TagSet, len(rp.TagSets))
		for i, s := range rp.TagSets {
			sets[i] = maps.Clone(s)
		}
		rp.TagSets = sets
	}
	return rp
}

// Equal 报告两个读偏好是否等价。
func (rp ReadPref) Equal(other ReadPref) bool {
	if rp.Mode != other.Mode || rp.Window() != other.Window() || len(rp.TagSets) != len(other.TagSets) {
		return false
	}
	for i := range rp.TagSets {
		if !maps.Equal(rp.TagSets[i], other.TagSets[i]) {
			return false
		}
	}
	return true
}

func (rp ReadPref) String() string {
	var b strings.Builder
	b.WriteString(rp.Mode.String())
	if len(rp.TagSets) > 0 {
		b.WriteString(" tags=[")
		for i, s := range rp.TagSets {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(s.String())
		}
		b.WriteByte(']')
	}
	b.WriteString(" window=")
	b.WriteString(rp.Window().String())
	return b.String()
}
