package structs

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Point 描述棋盘上的一个格子坐标。
type Point struct {
	X int `json:"x"` // X坐标，水平方向可循环
	Y int `json:"y"` // Y坐标，不循环
}

// Add 返回沿方向移动一格后的坐标，不做任何循环处理。
func (p Point) Add(d Direction) Point {
	return Point{X: p.X + d.DX, Y: p.Y + d.DY}
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Direction 是四个单位向量之一。
type Direction struct {
	DX int
	DY int
}

var (
	Up    = Direction{DX: 0, DY: -1}
	Down  = Direction{DX: 0, DY: 1}
	Left  = Direction{DX: -1, DY: 0}
	Right = Direction{DX: 1, DY: 0}
)

// Directions is the fixed enumeration order used by every search and scan.
// Tie-breaking depends on it.
var Directions = [4]Direction{Up, Down, Left, Right}

// Opposite returns the negated vector.
func (d Direction) Opposite() Direction {
	return Direction{DX: -d.DX, DY: -d.DY}
}

// IsReverseOf reports whether d is the exact negation of other.
func (d Direction) IsReverseOf(other Direction) bool {
	return d.DX == -other.DX && d.DY == -other.DY
}

func (d Direction) IsZero() bool {
	return d.DX == 0 && d.DY == 0
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return fmt.Sprintf("(%d,%d)", d.DX, d.DY)
}

// ParseDirection 解析 "up", "down", "left", "right"（大小写不敏感）
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	}
	return Direction{}, fmt.Errorf("invalid direction '%s' provided", s)
}

func (d Direction) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(d.String())
}

func (d *Direction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Direction{}
		return nil
	}
	parsed, err := ParseDirection(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// PortalPair 一对互通的传送门格子。
type PortalPair struct {
	A Point `json:"a"`
	B Point `json:"b"`
}

// BoardDef 描述一张棋盘的磁盘格式。
// Rows 为文本网格：'#' 为阻挡，'.' 为空地，同一字母出现两次即为一对传送门。
// Blocked 与 Portals 会叠加在 Rows 之上。
type BoardDef struct {
	Name    string       `json:"name"`
	Width   int          `json:"width,omitempty"`
	Height  int          `json:"height,omitempty"`
	Rows    []string     `json:"rows,omitempty"`
	Blocked []Point      `json:"blocked,omitempty"`
	Portals []PortalPair `json:"portals,omitempty"`
}

// Snapshot 是一局游戏的只读视图，交给渲染方或 HTTP 调用方。
type Snapshot struct {
	ID          string    `json:"id,omitempty"`
	Board       string    `json:"board,omitempty"`
	Mode        string    `json:"mode,omitempty"`
	Agent       string    `json:"agent,omitempty"`
	Snake       []Point   `json:"snake"`
	Head        Point     `json:"head"`
	Food        Point     `json:"food"`
	Direction   Direction `json:"direction"`
	Length      int       `json:"length"`
	GameOver    bool      `json:"game_over"`
	Cleared     bool      `json:"cleared"`
	Ticks       uint64    `json:"ticks"`
	EndSequence int       `json:"end_sequence"` // 剩余的结束动画帧数
}
