// Copyright (c) QueryDesk Authors.
// Licensed under the MIT License.

/*
Package rag 提供文档向量检索引擎的完整实现。

该包覆盖检索管线的全部阶段：文本清洗、文档分块、向量化、向量索引、
片段检索、抽取式答案合成、全文摘要与关键词提取，并提供可选的
SQLite 持久化以支持重启恢复。

# 核心接口/类型

  - EmbeddingProvider — 外部向量化能力接口（Embed / Dimension / Model）
  - Tokenizer — 分块元数据用分词器接口（Estimator / Tiktoken 两种实现）
  - Index — 写时复制快照向量索引（Insert / Search / Remove）
  - DocumentStore — 文档与派生产物（摘要、关键词）存储
  - Engine — 检索引擎编排（Ingest / Answer / Summarize）
  - Persistence — (Document, Chunk, Embedding) 三元组持久化

# 并发模型

索引读取方无锁加载最近发布的快照；写入方（Ingest / Remove）仅在
提交交换时串行互斥。分块与向量化在提交点之前无同步执行，向量化
调用遵守 context 取消。会话与索引的提交各自原子，读取方不会观察
到部分提交的文档。
*/
package rag
