package xbreaker

// ConsecutiveFailuresPolicy 连续失败熔断策略
type ConsecutiveFailuresPolicy struct {
	threshold uint32
}

// NewConsecutiveFailures 创建连续失败熔断策略，threshold 最小为 1。
func NewConsecutiveFailures(threshold uint32) *ConsecutiveFailuresPolicy {
	if threshold == 0 {
		threshold = 1
	}
	return &ConsecutiveFailuresPolicy{threshold: threshold}
}

func (p *ConsecutiveFailuresPolicy) ReadyToTrip(counts Counts) bool {
	return counts.ConsecutiveFailures >= p.threshold
}

// FailureRatioPolicy 失败率熔断策略，请求数不足 minRequests 时不触发。
type FailureRatioPolicy struct {
	ratio       float64
	minRequests uint32
}

// NewFailureRatio 创建失败率熔断策略，ratio 截断到 [0,1]。
func NewFailureRatio(ratio float64, minRequests uint32) *FailureRatioPolicy {
	ratio = min(max(ratio, 0), 1)
	return &FailureRatioPolicy{ratio: ratio, minRequests: minRequests}
}

func (p *FailureRatioPolicy) ReadyToTrip(counts Counts) bool {
	if counts.Requests == 0 || counts.Requests < p.minRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= p.ratio
}

var (
	_ TripPolicy = (*ConsecutiveFailuresPolicy)(nil)
	_ TripPolicy = (*FailureRatioPolicy)(nil)
)
