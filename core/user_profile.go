package core

import (
	"sort"
	"time"
)

// UserProfile 是用户画像：可见收听历史 + 偏好向量。
//
// 它不是某一个 Node，而是：
//   - 被所有召回源共享（只读）
//   - 驱动 content / collaborative 召回与历史过滤
//
// 隐向量不在这里，由 model.FactorStore 持有。
type UserProfile struct {
	UserID string

	// PreferenceVector 是历史曲目归一化特征的质心，历史全无特征时为 nil
	PreferenceVector []float64

	// History 按时间升序
	History []ListenEvent

	UpdateTime time.Time

	listened map[string]struct{}
}

// NewUserProfile 创建一个新的用户画像。
func NewUserProfile(userID string) *UserProfile {
	return &UserProfile{
		UserID:     userID,
		listened:   make(map[string]struct{}),
		UpdateTime: time.Now(),
	}
}

// SetHistory 写入历史（复制并按时间升序稳定排序）并重建索引。
func (p *UserProfile) SetHistory(history []ListenEvent) {
	h := make([]ListenEvent, len(history))
	copy(h, history)
	SortChronological(h)
	p.History = h
	p.listened = make(map[string]struct{}, len(h))
	for _, e := range h {
		p.listened[e.TrackID] = struct{}{}
	}
	p.UpdateTime = time.Now()
}

// Listened 判断曲目是否在历史中。
func (p *UserProfile) Listened(trackID string) bool {
	_, ok := p.listened[trackID]
	return ok
}

// HistoryIDs 返回去重后的历史曲目 ID，保持时间顺序。
func (p *UserProfile) HistoryIDs() []string {
	seen := make(map[string]struct{}, len(p.History))
	out := make([]string, 0, len(p.History))
	for _, e := range p.History {
		if _, ok := seen[e.TrackID]; ok {
			continue
		}
		seen[e.TrackID] = struct{}{}
		out = append(out, e.TrackID)
	}
	return out
}

// SortChronological 按时间升序稳定排序。
func SortChronological(events []ListenEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
}
