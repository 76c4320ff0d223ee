package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// AppConfig holds the structure of the configuration
type AppConfig struct {
	Port           string `json:"port"`
	BoardDir       string `json:"board_dir"`        // 棋盘文件目录，热更新
	DBPath         string `json:"db_path"`          // sqlite 存档
	DefaultBoard   string `json:"default_board"`    // new-game 未指定棋盘时使用
	DefaultAgent   string `json:"default_agent"`    // bfs 或 greedy
	InitialLength  int    `json:"initial_length"`   // 开局蛇长
	AgentTickMs    int    `json:"agent_tick_ms"`    // 自动驾驶帧间隔
	PlayerTickMs   int    `json:"player_tick_ms"`   // 玩家模式帧间隔
	EndSequenceMs  int    `json:"end_sequence_ms"`  // 结束动画时长
	BoardImageCell int    `json:"board_image_cell"` // 图片棋盘一个格子的像素
	Seed           uint64 `json:"seed"`             // 0 表示按时间取种子
	Autoplay       bool   `json:"autoplay"`         // 启动时跑一局自动演示
}

var (
	instance *AppConfig
	once     sync.Once
	loadErr  error
)

func defaults() *AppConfig {
	return &AppConfig{
		Port:           "38870",
		BoardDir:       "boards",
		DBPath:         "game.db",
		DefaultBoard:   "default",
		DefaultAgent:   "bfs",
		InitialLength:  3,
		AgentTickMs:    70,
		PlayerTickMs:   150,
		EndSequenceMs:  5000,
		BoardImageCell: 1,
		Autoplay:       true,
	}
}

// LoadConfig initializes and returns the instance of AppConfig.
// A missing file is created with the default values.
func LoadConfig(filePath string) (*AppConfig, error) {
	once.Do(func() {
		instance, loadErr = load(filePath)
	})
	return instance, loadErr
}

func load(filePath string) (*AppConfig, error) {
	cfg := defaults()
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return cfg, saveConfig(filePath, cfg)
	}
	if err := loadConfig(filePath, cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return cfg, nil
}

// loadConfig loads the settings from the file
func loadConfig(filePath string, cfg *AppConfig) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("decode %s: %w", filePath, err)
	}
	return nil
}

// saveConfig saves the current settings to the file
func saveConfig(filePath string, cfg *AppConfig) error {
	file, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(cfg)
}

func (c *AppConfig) validate() error {
	if c.InitialLength < 1 {
		return fmt.Errorf("initial_length must be at least 1, got %d", c.InitialLength)
	}
	if c.AgentTickMs <= 0 || c.PlayerTickMs <= 0 {
		return fmt.Errorf("tick intervals must be positive")
	}
	if c.BoardImageCell < 1 {
		c.BoardImageCell = 1
	}
	return nil
}

func (c *AppConfig) AgentTick() time.Duration {
	return time.Duration(c.AgentTickMs) * time.Millisecond
}

func (c *AppConfig) PlayerTick() time.Duration {
	return time.Duration(c.PlayerTickMs) * time.Millisecond
}

func (c *AppConfig) EndSequence() time.Duration {
	return time.Duration(c.EndSequenceMs) * time.Millisecond
}

// GetConfigValue returns the value of the configuration by key
func GetConfigValue(key string) interface{} {
	if instance == nil {
		return ""
	}
	switch key {
	case "port":
		return instance.Port
	case "board_dir":
		return instance.BoardDir
	case "db_path":
		return instance.DBPath
	case "default_board":
		return instance.DefaultBoard
	case "default_agent":
		return instance.DefaultAgent
	case "initial_length":
		return instance.InitialLength
	case "agent_tick_ms":
		return instance.AgentTickMs
	case "player_tick_ms":
		return instance.PlayerTickMs
	case "end_sequence_ms":
		return instance.EndSequenceMs
	case "board_image_cell":
		return instance.BoardImageCell
	case "seed":
		return instance.Seed
	case "autoplay":
		return instance.Autoplay
	default:
		return ""
	}
}
