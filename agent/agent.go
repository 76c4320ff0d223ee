// 自动驾驶：根据当前局面给出下一步方向
package agent

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hoshinonyaruko/snake-in-led/snake"
	"github.com/hoshinonyaruko/snake-in-led/structs"
)

// Mover 根据局面提出一个方向。第二个返回值为 false 表示没有可走的方向，
// 由 StepEngine 的随机恢复兜底。外部策略（包括学习得到的策略）也实现这个接口。
type Mover interface {
	ComputeMove(g *snake.Game) (structs.Direction, bool)
}

// MoverFunc adapts a plain function to Mover.
type MoverFunc func(g *snake.Game) (structs.Direction, bool)

func (f MoverFunc) ComputeMove(g *snake.Game) (structs.Direction, bool) { return f(g) }

var ErrUnknownAgent = errors.New("unknown agent")

// New returns the built-in mover registered under name.
func New(name string) (Mover, error) {
	switch strings.ToLower(name) {
	case "bfs", "":
		return BFS{}, nil
	case "greedy":
		return Greedy{}, nil
	}
	return nil, fmt.Errorf("'%s': %w", name, ErrUnknownAgent)
}

// Greedy 只看一步：按曼哈顿距离靠近食物。
type Greedy struct{}

func (Greedy) ComputeMove(g *snake.Game) (structs.Direction, bool) { return ComputeGreedyMove(g) }

type candidate struct {
	dir  structs.Direction
	dist int
}

// ComputeGreedyMove 跳过蛇身第二节（避免原地掉头），按到食物的曼哈顿距离升序挑选安全的方向。
// 都不行时放宽掉头限制，返回第一个安全方向。
func ComputeGreedyMove(g *snake.Game) (structs.Direction, bool) {
	topo := g.Topology()
	head := g.SnakeHead()
	food := g.Food()

	var moves []candidate
	for _, dir := range structs.Directions {
		next := topo.NextHead(head, dir)
		if g.Len() > 1 && next == g.Segment(1) {
			continue
		}
		if g.IsSafe(next, 0) {
			moves = append(moves, candidate{dir: dir, dist: manhattan(next, food)})
		}
	}

	// 距离相同时按方向向量排序，保证结果稳定
	sort.Slice(moves, func(i, j int) bool {
		a, b := moves[i], moves[j]
		if a.dist != b.dist {
			return a.dist < b.dist
		}
		if a.dir.DX != b.dir.DX {
			return a.dir.DX < b.dir.DX
		}
		return a.dir.DY < b.dir.DY
	})

	for _, m := range moves {
		if g.IsSafe(topo.NextHead(head, m.dir), 0) {
			return m.dir, true
		}
	}

	for _, dir := range structs.Directions {
		if g.IsSafe(topo.NextHead(head, dir), 0) {
			return dir, true
		}
	}
	return structs.Direction{}, false
}

func manhattan(a, b structs.Point) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
