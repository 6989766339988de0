// Package xreadpref 实现读偏好模型与路由解析。
//
// ReadPref 由模式、按序排列的标签集和可接受延迟窗口组成。Resolver 针对一份
// xtopo.Snapshot 解析出唯一的目标节点：
//
//  1. 只保留健康节点
//  2. 依次尝试标签集，取第一个至少匹配一个节点的集合
//  3. 按模式选择 PRIMARY / SECONDARY，Preferred 模式互为回退；Nearest 接受任意角色
//  4. 多个候选时保留延迟窗口内的节点，再均匀随机选择
//
// 单机部署的快照对任何模式都返回唯一的节点。
//
// 返回的节点只是路由提示：连接仍可能失败，调用方应强制刷新拓扑后再解析一次。
package xreadpref
