package agent

import (
	"sort"

	"github.com/hoshinonyaruko/snake-in-led/snake"
	"github.com/hoshinonyaruko/snake-in-led/structs"
)

// Observation cell codes.
const (
	CellEmpty = 0
	CellBody  = 1
	CellHead  = 2
	CellFood  = 3
)

// Scorer is an external learned policy. Score returns one value per entry of
// structs.Directions, higher is better.
type Scorer interface {
	Score(obs []float64) [4]float64
}

// Policy 把外部学习得到的策略包装成 Mover：按分数从高到低尝试，返回第一个安全方向。
type Policy struct {
	Scorer Scorer
}

func (p Policy) ComputeMove(g *snake.Game) (structs.Direction, bool) {
	scores := p.Scorer.Score(Observe(g))

	order := []int{0, 1, 2, 3}
	sort.SliceStable(order, func(i, j int) bool { return scores[order[i]] > scores[order[j]] })

	head := g.SnakeHead()
	for _, idx := range order {
		dir := structs.Directions[idx]
		if g.IsSafe(g.Topology().NextHead(head, dir), 0) {
			return dir, true
		}
	}
	return structs.Direction{}, false
}

// Observe 把局面压平成 width*height 的向量，下标为 x*height + y。
func Observe(g *snake.Game) []float64 {
	topo := g.Topology()
	h := topo.Height()
	obs := make([]float64, topo.Width()*h)
	for _, p := range g.SnakeBody() {
		obs[p.X*h+p.Y] = CellBody
	}
	head := g.SnakeHead()
	obs[head.X*h+head.Y] = CellHead
	if !g.IsCleared() {
		food := g.Food()
		obs[food.X*h+food.Y] = CellFood
	}
	return obs
}
