package ws

import (
	"sort"
	"sync"
)

// Presence 维护 userID -> 活跃连接 id 集合。同一用户多端在线合法，
// 只有第一条连接建立 / 最后一条连接断开才触发上下线广播。
// 进程内状态，重启后从零重建，不落库。
type Presence struct {
	mu     sync.Mutex
	online map[string]map[string]struct{}
}

func NewPresence() *Presence {
	return &Presence{online: make(map[string]map[string]struct{})}
}

// Register 记录一条连接，返回这是否是该用户的第一条活跃连接。
func (p *Presence) Register(userID, connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	conns, ok := p.online[userID]
	if !ok {
		conns = make(map[string]struct{})
		p.online[userID] = conns
	}
	conns[connID] = struct{}{}
	return !ok
}

// Deregister 摘除一条连接，返回该用户是否因此完全下线。
func (p *Presence) Deregister(userID, connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	conns, ok := p.online[userID]
	if !ok {
		return false
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(p.online, userID)
		return true
	}
	return false
}

// Snapshot 返回当前在线用户 id 列表，新连接建立时私发给客户端。
func (p *Presence) Snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.online))
	for userID := range p.online {
		out = append(out, userID)
	}
	sort.Strings(out)
	return out
}

// Online 报告用户是否至少有一条活跃连接。
func (p *Presence) Online(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.online[userID]
	return ok
}

// Count 返回在线用户数，供指标上报。
func (p *Presence) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.online)
}
