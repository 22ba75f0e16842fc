package feature

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/tunekit/core"
)

// Dataset 是本地数据集文件（YAML 或 JSON）：
//
//	tracks:
//	  - id: t1
//	    artist: a1
//	    genre: rock
//	    popularity: 0.8
//	    features: {danceability: 0.7, energy: 0.8, tempo: 120}
//	listens:
//	  u1:
//	    - {track_id: t1, timestamp: "2024-03-01T10:00:00Z"}
//	    - {track_id: t2, unix: 1709290000}
type Dataset struct {
	Tracks  []trackRecord             `yaml:"tracks"`
	Listens map[string][]listenRecord `yaml:"listens"`
}

type trackRecord struct {
	core.Track `yaml:",inline"`
	Features   *core.AudioFeatures `yaml:"features"`
}

type listenRecord struct {
	TrackID   string `yaml:"track_id"`
	Timestamp string `yaml:"timestamp"`
	Unix      int64  `yaml:"unix"`
}

func (r listenRecord) time() (time.Time, error) {
	if r.Timestamp != "" {
		return time.Parse(time.RFC3339, r.Timestamp)
	}
	return time.Unix(r.Unix, 0).UTC(), nil
}

// ParseDataset 解析数据集内容（JSON 是 YAML 的子集，两种格式都可以）。
func ParseDataset(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("feature: parse dataset: %w", err)
	}
	return &ds, nil
}

// LoadDataset 读取数据集文件并装载为 MemoryStore。
func LoadDataset(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("feature: read dataset %s: %w", path, err)
	}
	ds, err := ParseDataset(data)
	if err != nil {
		return nil, err
	}
	return ds.Build()
}

// Build 把数据集装入新的 MemoryStore。
func (ds *Dataset) Build() (*MemoryStore, error) {
	m := NewMemoryStore()
	for i, t := range ds.Tracks {
		if t.ID == "" {
			return nil, core.InvalidInput(core.ModuleFeature, fmt.Sprintf("feature: track #%d has no id", i))
		}
		m.PutTrack(t.Track, t.Features)
	}
	for user, listens := range ds.Listens {
		for _, l := range listens {
			ts, err := l.time()
			if err != nil {
				return nil, fmt.Errorf("feature: listen %s/%s: %w", user, l.TrackID, err)
			}
			m.AddListen(user, core.ListenEvent{TrackID: l.TrackID, Timestamp: ts})
		}
	}
	return m, nil
}
