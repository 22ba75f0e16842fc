// Package feedback 通过 Kafka 接收评分反馈，并应用到推荐器（MF 单步更新、热度榜、缓存失效）。
package feedback

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/tunekit/core"
)

// Event 是一条评分反馈。rating 通常为 [-1,1]，正值同时计入热度榜。
type Event struct {
	UserID    string    `json:"user_id"`
	TrackID   string    `json:"track_id"`
	Rating    float64   `json:"rating"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate 检查必填字段。
func (e Event) Validate() error {
	if strings.TrimSpace(e.UserID) == "" || strings.TrimSpace(e.TrackID) == "" {
		return core.InvalidInput(core.ModuleRecommend, "feedback: user_id and track_id are required")
	}
	return nil
}

// Decode 解析 JSON 编码的事件。
func Decode(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return e, core.InvalidInput(core.ModuleRecommend, fmt.Sprintf("feedback: decode event: %v", err))
	}
	return e, e.Validate()
}

// Encode 序列化事件。
func Encode(e Event) ([]byte, error) {
	return json.Marshal(e)
}
