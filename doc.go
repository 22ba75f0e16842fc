// Package tunekit 是一个混合音乐推荐工具包。
//
// 设计要点：
//   - 四路召回（协同过滤 / 内容相似 / 场景匹配 / 热度）经 recall.Fanout 并发执行，按权重合并
//   - 召回之后的过滤与重排走 pipeline.Node，可由 YAML 配置（config.LoadPipeline）
//   - 曲目按音频特征做 K-Means 或密度聚类，簇标签由 summarizer 生成，失败时退化为规则标签
//   - eval 以按时间切分的留出法离线评估推荐质量
//
// 命令行入口见 cmd/tunekit。
package tunekit
