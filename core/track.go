package core

import "time"

// FeatureDim 是音频特征向量的维度。
const FeatureDim = 8

// 音频特征在向量中的下标（与 FeatureNames 顺序一致）。
const (
	IdxDanceability = iota
	IdxEnergy
	IdxValence
	IdxAcousticness
	IdxInstrumentalness
	IdxSpeechiness
	IdxLiveness
	IdxTempo
)

// FeatureNames 是音频特征的规范顺序。
var FeatureNames = []string{
	"danceability",
	"energy",
	"valence",
	"acousticness",
	"instrumentalness",
	"speechiness",
	"liveness",
	"tempo",
}

// FeatureIndex 返回特征名对应的向量下标，未知特征返回 -1。
func FeatureIndex(name string) int {
	for i, n := range FeatureNames {
		if n == name {
			return i
		}
	}
	return -1
}

// AudioFeatures 是单首曲目的音频特征。
// 除 Tempo（BPM）外均在 [0,1] 区间内。
type AudioFeatures struct {
	Danceability     float64 `json:"danceability" yaml:"danceability"`
	Energy           float64 `json:"energy" yaml:"energy"`
	Valence          float64 `json:"valence" yaml:"valence"`
	Acousticness     float64 `json:"acousticness" yaml:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness" yaml:"instrumentalness"`
	Speechiness      float64 `json:"speechiness" yaml:"speechiness"`
	Liveness         float64 `json:"liveness" yaml:"liveness"`
	Tempo            float64 `json:"tempo" yaml:"tempo"`
}

// Vector 按 FeatureNames 顺序返回原始特征向量。
func (f AudioFeatures) Vector() []float64 {
	return []float64{
		f.Danceability,
		f.Energy,
		f.Valence,
		f.Acousticness,
		f.Instrumentalness,
		f.Speechiness,
		f.Liveness,
		f.Tempo,
	}
}

// Map 返回 name -> value 形式，供 CEL 规则与 Item.Features 使用。
func (f AudioFeatures) Map() map[string]float64 {
	v := f.Vector()
	out := make(map[string]float64, len(v))
	for i, name := range FeatureNames {
		out[name] = v[i]
	}
	return out
}

// AudioFeaturesFromVector 从规范顺序的向量还原，长度不足的维度置 0。
func AudioFeaturesFromVector(v []float64) AudioFeatures {
	get := func(i int) float64 {
		if i < len(v) {
			return v[i]
		}
		return 0
	}
	return AudioFeatures{
		Danceability:     get(IdxDanceability),
		Energy:           get(IdxEnergy),
		Valence:          get(IdxValence),
		Acousticness:     get(IdxAcousticness),
		Instrumentalness: get(IdxInstrumentalness),
		Speechiness:      get(IdxSpeechiness),
		Liveness:         get(IdxLiveness),
		Tempo:            get(IdxTempo),
	}
}

// AudioFeaturesFromMap 从 name -> value 还原，缺失的特征置 0。
func AudioFeaturesFromMap(m map[string]float64) AudioFeatures {
	v := make([]float64, FeatureDim)
	for i, name := range FeatureNames {
		v[i] = m[name]
	}
	return AudioFeaturesFromVector(v)
}

// Track 是曲目目录中的一条记录。音频特征单独查询，可能缺失。
type Track struct {
	ID         string  `json:"id" yaml:"id"`
	Title      string  `json:"title" yaml:"title"`
	Artist     string  `json:"artist" yaml:"artist"`
	Genre      string  `json:"genre" yaml:"genre"` // 主流派
	Popularity float64 `json:"popularity" yaml:"popularity"`
}

// ListenEvent 是一次收听记录。
type ListenEvent struct {
	TrackID   string    `json:"track_id" yaml:"track_id"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}
