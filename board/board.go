// 棋盘拓扑：尺寸、阻挡格、传送门和水平循环
package board

import (
	"errors"
	"fmt"
	"sort"
	"unicode"

	"github.com/hoshinonyaruko/snake-in-led/structs"
	"github.com/zyedidia/generic/mapset"
)

var (
	ErrDimensions    = errors.New("board dimensions must be positive")
	ErrOutOfBounds   = errors.New("cell out of bounds")
	ErrPortal        = errors.New("invalid portal pairing")
	ErrNoOpenCell    = errors.New("board has no open cell")
	ErrRowsMalformed = errors.New("malformed board rows")
)

// Topology 是只读的棋盘几何信息，构造后在多局游戏之间共享。
type Topology struct {
	name    string
	width   int
	height  int
	blocked mapset.Set[structs.Point]
	portals map[structs.Point]structs.Point
	open    []structs.Point
}

// New 校验并构造棋盘。所有传送门目标必须在界内且不可阻挡，至少要有一个空格子。
func New(def structs.BoardDef) (*Topology, error) {
	width, height := def.Width, def.Height
	blocked := mapset.New[structs.Point]()
	portals := make(map[structs.Point]structs.Point)

	if len(def.Rows) > 0 {
		w, h, err := parseRows(def.Rows, blocked, portals)
		if err != nil {
			return nil, fmt.Errorf("board %q: %w", def.Name, err)
		}
		if width == 0 {
			width = w
		}
		if height == 0 {
			height = h
		}
		if width != w || height != h {
			return nil, fmt.Errorf("board %q: rows are %dx%d but size is %dx%d: %w", def.Name, w, h, width, height, ErrRowsMalformed)
		}
	}

	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("board %q: %dx%d: %w", def.Name, width, height, ErrDimensions)
	}

	t := &Topology{
		name:    def.Name,
		width:   width,
		height:  height,
		blocked: blocked,
		portals: portals,
	}

	for _, p := range def.Blocked {
		if !t.InBounds(p) {
			return nil, fmt.Errorf("board %q: blocked cell %v: %w", def.Name, p, ErrOutOfBounds)
		}
		t.blocked.Put(p)
	}

	for _, pair := range def.Portals {
		if err := t.addPortal(pair.A, pair.B); err != nil {
			return nil, fmt.Errorf("board %q: %w", def.Name, err)
		}
	}

	if err := t.validatePortals(); err != nil {
		return nil, fmt.Errorf("board %q: %w", def.Name, err)
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			p := structs.Point{X: x, Y: y}
			if !t.blocked.Has(p) {
				t.open = append(t.open, p)
			}
		}
	}
	if len(t.open) == 0 {
		return nil, fmt.Errorf("board %q: %w", def.Name, ErrNoOpenCell)
	}

	return t, nil
}

// MustNew panics on an invalid definition. Used for built-in boards and tests.
func MustNew(def structs.BoardDef) *Topology {
	t, err := New(def)
	if err != nil {
		panic(err)
	}
	return t
}

func parseRows(rows []string, blocked mapset.Set[structs.Point], portals map[structs.Point]structs.Point) (int, int, error) {
	width := len([]rune(rows[0]))
	pending := make(map[rune]structs.Point)

	for y, row := range rows {
		cells := []rune(row)
		if len(cells) != width {
			return 0, 0, fmt.Errorf("row %d has %d cells, want %d: %w", y, len(cells), width, ErrRowsMalformed)
		}
		for x, c := range cells {
			p := structs.Point{X: x, Y: y}
			switch {
			case c == '#':
				blocked.Put(p)
			case c == '.' || c == ' ':
			case unicode.IsLetter(c):
				other, seen := pending[c]
				if !seen {
					pending[c] = p
					continue
				}
				if _, dup := portals[other]; dup {
					return 0, 0, fmt.Errorf("portal %q used more than twice: %w", c, ErrPortal)
				}
				portals[other] = p
				portals[p] = other
			default:
				return 0, 0, fmt.Errorf("unknown cell %q at %v: %w", c, p, ErrRowsMalformed)
			}
		}
	}

	for c, p := range pending {
		if _, paired := portals[p]; !paired {
			return 0, 0, fmt.Errorf("portal %q at %v has no partner: %w", c, p, ErrPortal)
		}
	}
	return width, len(rows), nil
}

func (t *Topology) addPortal(a, b structs.Point) error {
	if a == b {
		return fmt.Errorf("portal %v paired with itself: %w", a, ErrPortal)
	}
	for _, p := range []structs.Point{a, b} {
		if !t.InBounds(p) {
			return fmt.Errorf("portal %v: %w", p, ErrOutOfBounds)
		}
		if existing, ok := t.portals[p]; ok && existing != a && existing != b {
			return fmt.Errorf("portal %v already paired with %v: %w", p, existing, ErrPortal)
		}
	}
	t.portals[a] = b
	t.portals[b] = a
	return nil
}

func (t *Topology) validatePortals() error {
	for a, b := range t.portals {
		if !t.InBounds(a) || !t.InBounds(b) {
			return fmt.Errorf("portal %v -> %v: %w", a, b, ErrOutOfBounds)
		}
		if back, ok := t.portals[b]; !ok || back != a {
			return fmt.Errorf("portal %v -> %v is not symmetric: %w", a, b, ErrPortal)
		}
		if t.blocked.Has(a) {
			return fmt.Errorf("portal %v is blocked: %w", a, ErrPortal)
		}
	}
	return nil
}

func (t *Topology) Name() string { return t.name }
func (t *Topology) Width() int { return t.width }
func (t *Topology) Height() int { return t.height }

func (t *Topology) InBounds(p structs.Point) bool {
	return p.X >= 0 && p.X < t.width && p.Y >= 0 && p.Y < t.height
}

// IsBlocked 判断格子是否不可通行。界外的格子（只会出现在上下边缘）视为阻挡。
func (t *Topology) IsBlocked(p structs.Point) bool {
	if !t.InBounds(p) {
		return true
	}
	return t.blocked.Has(p)
}

func (t *Topology) IsPortal(p structs.Point) bool {
	_, ok := t.portals[p]
	return ok
}

// PortalOf returns the paired cell of a portal.
func (t *Topology) PortalOf(p structs.Point) (structs.Point, bool) {
	dst, ok := t.portals[p]
	return dst, ok
}

// NextHead 计算蛇头沿方向前进一格后的位置。
// x 在 [0, width) 内循环；y 不循环，越过上下边缘只能通过传送门。
// 只有从传送门格子向上移动才会触发传送。
func (t *Topology) NextHead(head structs.Point, dir structs.Direction) structs.Point {
	next := head.Add(dir)
	if next.X < 0 {
		next.X = t.width - 1
	}
	if next.X >= t.width {
		next.X = 0
	}
	if dir == structs.Up {
		if dst, ok := t.portals[head]; ok {
			next = dst
		}
	}
	return next
}

// OpenCells returns every non-blocked cell in row-major order.
func (t *Topology) OpenCells() []structs.Point {
	out := make([]structs.Point, len(t.open))
	copy(out, t.open)
	return out
}

func (t *Topology) OpenCount() int { return len(t.open) }

// Portals returns each pair once, ordered by the first cell.
func (t *Topology) Portals() []structs.PortalPair {
	var pairs []structs.PortalPair
	for a, b := range t.portals {
		if less(a, b) {
			pairs = append(pairs, structs.PortalPair{A: a, B: b})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return less(pairs[i].A, pairs[j].A) })
	return pairs
}

// Def 将拓扑还原为磁盘格式，只使用显式列表。
func (t *Topology) Def() structs.BoardDef {
	def := structs.BoardDef{
		Name:    t.name,
		Width:   t.width,
		Height:  t.height,
		Portals: t.Portals(),
	}
	t.blocked.Each(func(p structs.Point) {
		def.Blocked = append(def.Blocked, p)
	})
	sort.Slice(def.Blocked, func(i, j int) bool { return less(def.Blocked[i], def.Blocked[j]) })
	return def
}

func less(a, b structs.Point) bool {
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}
