// Copyright (c) ConfigTrail Authors.
// Licensed under the MIT License.

/*
Package document 提供配置文档的解析、序列化、归一化与指纹计算。

# 概述

document 将外部 YAML 文档视为不透明的嵌套映射（Document），并负责把它
转成规范形态：所有"长得像无符号整数"的字符串标量被换成整数值。存储层
只处理归一化后的文档，相等性比较因此是对规范数据的比较。

# 核心能力

  - Parse / Serialize — YAML 与 Document 之间的编解码，顶层必须是映射
  - Normalize         — 递归数字串归一化，纯函数且幂等
  - Clone             — 深拷贝，存储快照使用，避免调用方事后修改产生别名
  - Fingerprint       — 规范 JSON 的 SHA-256 摘要，键序无关的内容指纹
  - Equal             — 基于指纹的结构相等性比较
*/
package document
