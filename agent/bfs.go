package agent

import (
	"github.com/hoshinonyaruko/snake-in-led/snake"
	"github.com/hoshinonyaruko/snake-in-led/structs"
	"github.com/zyedidia/generic/mapset"
)

// BFS 在当前棋盘上找一条到食物的最短路径，找不到时退回 Greedy。
type BFS struct{}

func (BFS) ComputeMove(g *snake.Game) (structs.Direction, bool) { return ComputeBFSMove(g) }

// node 记录位置、路径的第一步和已走的步数。
// 路径只用来取第一步和长度，所以不保存完整路径。
type node struct {
	pos   structs.Point
	first structs.Direction
	steps int
}

// ComputeBFSMove 广度优先搜索。visited 只按位置去重：边权一致，第一次访问即最短。
// 邻居按 structs.Directions 的固定顺序展开，走到第 n 步的格子用 IsSafe(p, n) 判断，
// 这样会被蛇尾让出的格子可以进入路径。
func ComputeBFSMove(g *snake.Game) (structs.Direction, bool) {
	topo := g.Topology()
	head := g.SnakeHead()
	food := g.Food()
	if head == food {
		return structs.Direction{}, false
	}

	visited := mapset.New[structs.Point]()
	queue := []node{{pos: head}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if visited.Has(cur.pos) {
			continue
		}
		visited.Put(cur.pos)

		if cur.pos == food {
			return cur.first, true
		}

		for _, dir := range structs.Directions {
			next := topo.NextHead(cur.pos, dir)
			if !g.IsSafe(next, cur.steps) || visited.Has(next) {
				continue
			}
			first := cur.first
			if cur.steps == 0 {
				first = dir
			}
			queue = append(queue, node{pos: next, first: first, steps: cur.steps + 1})
		}
	}

	return ComputeGreedyMove(g)
}
