package xtopo

// Change 一次拓扑变化。Previous 在首次发布时为 nil。
type Change struct {
	Previous *Snapshot
	Current  *Snapshot
	// Down 由健康变为不健康或从成员列表消失的节点。
	Down []string
	// Up 由不健康（或未知）变为健康的节点。
	Up             []string
	PrimaryChanged bool
}

// Empty 报告是否没有任何需要通知的变化。
func (c Change) Empty() bool {
	return len(c.Down) == 0 && len(c.Up) == 0 && !c.PrimaryChanged
}

func diff(prev, cur *Snapshot) Change {
	c := Change{Previous: prev, Current: cur}
	wasHealthy := map[string]bool{}
	if prev != nil {
		for _, h := range prev.hosts {
			wasHealthy[h.Address] = h.Healthy
		}
	}
	seen := make(map[string]struct{}, len(cur.hosts))
	for _, h := range cur.hosts {
		seen[h.Address] = struct{}{}
		before := wasHealthy[h.Address]
		switch {
		case before && !h.Healthy:
			c.Down = append(c.Down, h.Address)
		case !before && h.Healthy:
			c.Up = append(c.Up, h.Address)
		}
	}
	if prev != nil {
		for _, h := range prev.hosts {
			if _, ok := seen[h.Address]; !ok && h.Healthy {
				c.Down = append(c.Down, h.Address)
			}
		}
	}
	c.PrimaryChanged = primaryAddr(prev) != primaryAddr(cur)
	return c
}

func primaryAddr(s *Snapshot) string {
	if s == nil {
		return ""
	}
	if p := s.Primaries(); len(p) == 1 {
		return p[0].Address
	}
	return ""
}
