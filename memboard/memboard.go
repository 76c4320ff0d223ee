// 棋盘目录：从文件夹载入棋盘到内存，并监听文件变化热更新
package memboard

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fsnotify/fsnotify"
	"github.com/hoshinonyaruko/snake-in-led/board"
	"github.com/hoshinonyaruko/snake-in-led/structs"
)

// DefaultName 内置棋盘的名字
const DefaultName = "default"

// Catalog 保存所有已载入的棋盘，可并发读取。
type Catalog struct {
	mu       sync.RWMutex
	boards   map[string]*board.Topology
	files    map[string]string // 文件路径 -> 棋盘名
	cellSize int               // 图片中一个格子的像素边长
}

func NewCatalog(cellSize int) *Catalog {
	if cellSize < 1 {
		cellSize = 1
	}
	c := &Catalog{
		boards:   make(map[string]*board.Topology),
		files:    make(map[string]string),
		cellSize: cellSize,
	}
	c.Put(Default())
	return c
}

// Default 内置 14x8 空棋盘，目录为空时也有棋盘可用。
func Default() *board.Topology {
	return board.MustNew(structs.BoardDef{Name: DefaultName, Width: 14, Height: 8})
}

func (c *Catalog) Put(t *board.Topology) {
	c.mu.Lock()
	c.boards[t.Name()] = t
	c.mu.Unlock()
}

func (c *Catalog) Get(name string) (*board.Topology, bool) {
	c.mu.RLock()
	t, ok := c.boards[name]
	c.mu.RUnlock()
	return t, ok
}

// Names returns board names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	names := make([]string, 0, len(c.boards))
	for name := range c.boards {
		names = append(names, name)
	}
	c.mu.RUnlock()
	sort.Strings(names)
	return names
}

// LoadDir 载入目录下所有支持的棋盘文件。单个文件出错只记录日志并跳过。
func (c *Catalog) LoadDir(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !supported(path) {
			return nil
		}
		if err := c.loadFile(path); err != nil {
			log.Printf("skip board %s: %v", path, err)
		}
		return nil
	})
}

func supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".txt", ".png":
		return true
	}
	return false
}

func (c *Catalog) loadFile(path string) error {
	t, err := c.LoadFile(path)
	if err != nil {
		return err
	}
	c.mu.Lock()
	if old, ok := c.files[path]; ok && old != t.Name() {
		delete(c.boards, old)
	}
	c.files[path] = t.Name()
	c.boards[t.Name()] = t
	c.mu.Unlock()
	return nil
}

func (c *Catalog) dropFile(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name, ok := c.files[path]
	if !ok {
		return
	}
	delete(c.files, path)
	delete(c.boards, name)
	if name == DefaultName {
		c.boards[DefaultName] = Default()
	}
}

// LoadFile 解析单个棋盘文件，不放入目录。
func (c *Catalog) LoadFile(path string) (*board.Topology, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var def structs.BoardDef
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		def, err = readJSON(path)
	case ".txt":
		def, err = readRows(path)
	case ".png":
		def, err = readImage(path, c.cellSize)
	default:
		return nil, fmt.Errorf("unsupported board file %s", path)
	}
	if err != nil {
		return nil, err
	}
	if def.Name == "" {
		def.Name = name
	}
	return board.New(def)
}

func readJSON(path string) (structs.BoardDef, error) {
	var def structs.BoardDef
	data, err := os.ReadFile(path)
	if err != nil {
		return def, err
	}
	if err := json.Unmarshal(data, &def); err != nil {
		return def, fmt.Errorf("decode %s: %w", path, err)
	}
	return def, nil
}

// readRows 文本网格，一行一排，空行忽略。
func readRows(path string) (structs.BoardDef, error) {
	var def structs.BoardDef
	file, err := os.Open(path)
	if err != nil {
		return def, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		def.Rows = append(def.Rows, line)
	}
	if err := scanner.Err(); err != nil {
		return def, err
	}
	if len(def.Rows) == 0 {
		return def, fmt.Errorf("%s has no rows", path)
	}
	return def, nil
}

// readImage 图片棋盘：先按格子大小缩小，之后一个像素一个格子。
// 深色为阻挡，浅色为空地，其他颜色各出现两次组成一对传送门。
func readImage(path string, cellSize int) (structs.BoardDef, error) {
	var def structs.BoardDef
	img, err := imaging.Open(path)
	if err != nil {
		return def, err
	}
	return decodeImage(img, cellSize)
}

func decodeImage(img image.Image, cellSize int) (structs.BoardDef, error) {
	var def structs.BoardDef
	b := img.Bounds()
	w, h := b.Dx()/cellSize, b.Dy()/cellSize
	if w == 0 || h == 0 {
		return def, fmt.Errorf("image %dx%d is smaller than one %dpx cell", b.Dx(), b.Dy(), cellSize)
	}

	var grid *image.NRGBA
	if cellSize > 1 {
		grid = imaging.Resize(img, w, h, imaging.NearestNeighbor)
	} else {
		grid = imaging.Clone(img)
	}

	def.Width, def.Height = w, h
	colors := make(map[[3]uint8][]structs.Point)
	var order [][3]uint8
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := grid.NRGBAAt(x, y)
			p := structs.Point{X: x, Y: y}
			switch classify(px.R, px.G, px.B, px.A) {
			case cellBlocked:
				def.Blocked = append(def.Blocked, p)
			case cellPortal:
				key := [3]uint8{px.R, px.G, px.B}
				if _, seen := colors[key]; !seen {
					order = append(order, key)
				}
				colors[key] = append(colors[key], p)
			}
		}
	}

	for _, key := range order {
		cells := colors[key]
		if len(cells) != 2 {
			return def, fmt.Errorf("portal colour #%02x%02x%02x appears %d times, want 2: %w",
				key[0], key[1], key[2], len(cells), board.ErrPortal)
		}
		def.Portals = append(def.Portals, structs.PortalPair{A: cells[0], B: cells[1]})
	}
	return def, nil
}

const (
	cellOpen = iota
	cellBlocked
	cellPortal
)

func classify(r, g, b, a uint8) int {
	if a < 128 {
		return cellBlocked
	}
	hi := max(r, g, b)
	lo := min(r, g, b)
	if hi-lo < 48 {
		if (int(r)+int(g)+int(b))/3 < 128 {
			return cellBlocked
		}
		return cellOpen
	}
	return cellPortal
}

// Watch 监听目录，新建或修改的棋盘文件重新载入，删除或改名的文件从目录移除。
// 监听器创建好后立即返回，事件在后台处理，ctx 取消时退出。
func (c *Catalog) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !supported(event.Name) {
					continue
				}
				switch {
				case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
					if err := c.loadFile(event.Name); err != nil {
						log.Printf("reload board %s: %v", event.Name, err)
					} else {
						log.Printf("board %s reloaded", event.Name)
					}
				case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
					c.dropFile(event.Name)
					log.Printf("board %s removed", event.Name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Println("board watcher error:", err)
			}
		}
	}()
	return nil
}
