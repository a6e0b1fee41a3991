// Package treepath 提供物化路径的纯计算函数。
// 路径只编码祖先链、不含节点自身 ID：根节点为 "/"，A 的子节点为 "/A/"，再往下为 "/A/B/"。
// 本包不做任何 I/O，持久化与事务由 repository 层负责。
package treepath

import "strings"

// Separator 物化路径的分隔符。
const Separator = "/"

// Root 根节点的路径（空祖先链）。
const Root = Separator

// ChildPath 计算子节点的路径：父节点路径 + 父节点ID + 分隔符。
// parentPath 为空时按根路径处理，容忍调用方传入未初始化的快照。
func ChildPath(parentPath, parentID string) string {
	if parentPath == "" {
		parentPath = Root
	}
	if parentID == "" {
		return parentPath
	}
	return parentPath + parentID + Separator
}

// SubtreePrefix 计算节点整棵子树共享的路径前缀：节点路径 + 节点ID + 分隔符。
// 所有后代（含间接后代）的路径都以该前缀开头，前缀匹配即子树查询。
func SubtreePrefix(path, id string) string {
	return ChildPath(path, id)
}

// IDsFromPath 解析路径中编码的祖先 ID，按从根到近的顺序返回。
// 根路径 "/" 返回空切片。
func IDsFromPath(path string) []string {
	trimmed := strings.Trim(path, Separator)
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, Separator)
}

// ContainsID 判断路径的祖先链中是否出现了指定 ID。
// 换父时用于环检测：若新父节点的路径中含有被移动节点的 ID，说明新父是它的后代。
func ContainsID(path, id string) bool {
	if id == "" {
		return false
	}
	return strings.Contains(path, Separator+id+Separator)
}

// RewritePrefix 把路径的旧前缀替换为新前缀。路径不以旧前缀开头时原样返回。
func RewritePrefix(path, oldPrefix, newPrefix string) string {
	if !strings.HasPrefix(path, oldPrefix) {
		return path
	}
	return newPrefix + path[len(oldPrefix):]
}

// pathIDProvider 是 MissingParentIDs 所需的最小读取面。
type pathIDProvider interface {
	GetID() string
	GetPath() string
}

// MissingParentIDs 找出一批节点的路径所引用、但不在这批节点之内的祖先 ID。
// 典型用途：按父节点过滤取回一页节点后，补齐渲染完整祖先链还缺哪些节点。
// 结果去重，顺序跟随输入集合中首次出现的位置；纯内存计算，无副作用。
func MissingParentIDs[T pathIDProvider](nodes []T) []string {
	present := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		present[n.GetID()] = struct{}{}
	}

	var missing []string
	seen := make(map[string]struct{})
	for _, n := range nodes {
		for _, id := range IDsFromPath(n.GetPath()) {
			if _, ok := present[id]; ok {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			missing = append(missing, id)
		}
	}
	return missing
}
