package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hoshinonyaruko/snake-in-led/structs"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound 没有对应的存档
var ErrNotFound = errors.New("session not stored")

const createSessionsTableSQL = `
CREATE TABLE IF NOT EXISTS Sessions (
    ID TEXT PRIMARY KEY,
    Board TEXT NOT NULL,
    Mode TEXT,
    Agent TEXT,
    Direction TEXT,
    GameOver INTEGER,
    Cleared INTEGER,
    Snake TEXT,
    Food TEXT,
    Ticks INTEGER,
    EndSequence INTEGER,
    UpdatedAt INTEGER,
    BoardDef TEXT
);
`

// 旧库没有 BoardDef 列
const addBoardDefColumnSQL = `ALTER TABLE Sessions ADD COLUMN BoardDef TEXT`

const createSessionsIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_session_board ON Sessions (Board);
`

const selectSessionSQL = `
SELECT s.ID, s.Board, s.Mode, s.Agent, s.Direction, s.GameOver, s.Cleared,
       s.Snake, s.Food, s.Ticks, s.EndSequence, s.UpdatedAt, COALESCE(s.BoardDef, '')
FROM Sessions s
`

// Record 一条会话存档
type Record struct {
	Snapshot  structs.Snapshot
	Board     structs.BoardDef
	UpdatedAt time.Time
}

func executeSQL(db *sql.DB, sqlStatement string) error {
	if _, err := db.Exec(sqlStatement); err != nil {
		return fmt.Errorf("executing SQL statement: %s\n%w", sqlStatement, err)
	}
	return nil
}

// Open 打开数据库文件并建表
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// 后台会话和请求处理会同时写入，单连接避免 database is locked
	db.SetMaxOpenConns(1)
	if err := InitializeDatabase(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func InitializeDatabase(db *sql.DB) error {
	for _, stmt := range []string{createSessionsTableSQL, createSessionsIndexSQL} {
		if err := executeSQL(db, stmt); err != nil {
			return err
		}
	}
	if err := executeSQL(db, addBoardDefColumnSQL); err != nil && !strings.Contains(err.Error(), "duplicate column name") {
		return err
	}
	return nil
}

// SaveSession 写入会话快照和它所在的棋盘定义。
// 棋盘定义按会话保存，同名棋盘文件被改过或删掉后，旧存档仍然能在原来的棋盘上恢复。
// 帧数比库里小的快照不会覆盖已有存档。
func SaveSession(db *sql.DB, snap structs.Snapshot, def structs.BoardDef) error {
	snakeData, err := json.Marshal(snap.Snake)
	if err != nil {
		return err
	}
	foodData, err := json.Marshal(snap.Food)
	if err != nil {
		return err
	}
	defData, err := json.Marshal(def)
	if err != nil {
		return err
	}

	var direction string
	if !snap.Direction.IsZero() {
		direction = snap.Direction.String()
	}
	_, err = db.Exec(`INSERT INTO Sessions
        (ID, Board, Mode, Agent, Direction, GameOver, Cleared, Snake, Food, Ticks, EndSequence, UpdatedAt, BoardDef)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(ID) DO UPDATE SET
            Board = excluded.Board, Mode = excluded.Mode, Agent = excluded.Agent,
            Direction = excluded.Direction, GameOver = excluded.GameOver, Cleared = excluded.Cleared,
            Snake = excluded.Snake, Food = excluded.Food, Ticks = excluded.Ticks,
            EndSequence = excluded.EndSequence, UpdatedAt = excluded.UpdatedAt, BoardDef = excluded.BoardDef
        WHERE excluded.Ticks >= Sessions.Ticks`,
		snap.ID, def.Name, snap.Mode, snap.Agent, direction, snap.GameOver, snap.Cleared,
		string(snakeData), string(foodData), int64(snap.Ticks), snap.EndSequence, time.Now().Unix(), string(defData))
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec                        Record
		direction, snakeData, food string
		defData                    string
		ticks, updated             int64
	)
	snap := &rec.Snapshot
	err := row.Scan(&snap.ID, &snap.Board, &snap.Mode, &snap.Agent, &direction, &snap.GameOver, &snap.Cleared,
		&snakeData, &food, &ticks, &snap.EndSequence, &updated, &defData)
	if err != nil {
		return rec, err
	}

	if direction != "" {
		if snap.Direction, err = structs.ParseDirection(direction); err != nil {
			return rec, fmt.Errorf("session %s: %w", snap.ID, err)
		}
	}
	if err := json.Unmarshal([]byte(snakeData), &snap.Snake); err != nil {
		return rec, fmt.Errorf("session %s snake: %w", snap.ID, err)
	}
	if err := json.Unmarshal([]byte(food), &snap.Food); err != nil {
		return rec, fmt.Errorf("session %s food: %w", snap.ID, err)
	}
	if defData != "" {
		if err := json.Unmarshal([]byte(defData), &rec.Board); err != nil {
			return rec, fmt.Errorf("session %s board: %w", snap.ID, err)
		}
	}
	if len(snap.Snake) > 0 {
		snap.Head = snap.Snake[0]
	}
	snap.Length = len(snap.Snake)
	snap.Ticks = uint64(ticks)
	rec.UpdatedAt = time.Unix(updated, 0)
	return rec, nil
}

func LoadSession(db *sql.DB, id string) (Record, error) {
	rec, err := scanRecord(db.QueryRow(selectSessionSQL+"WHERE s.ID = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return rec, err
}

// LoadSessions 读取全部存档，按 ID 排序。解析失败的行记日志后跳过。
func LoadSessions(db *sql.DB) ([]Record, error) {
	rows, err := db.Query(selectSessionSQL + "ORDER BY s.ID")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			log.Printf("skip stored session: %v", err)
			continue
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func DeleteSession(db *sql.DB, id string) error {
	result, err := db.Exec("DELETE FROM Sessions WHERE ID = ?", id)
	if err != nil {
		return err
	}
	if count, err := result.RowsAffected(); err != nil || count == 0 {
		if err != nil {
			return err
		}
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}
