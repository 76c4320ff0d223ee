package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/hoshinonyaruko/snake-in-led/api"
	"github.com/hoshinonyaruko/snake-in-led/config"
	"github.com/hoshinonyaruko/snake-in-led/memboard"
	"github.com/hoshinonyaruko/snake-in-led/session"
	"github.com/hoshinonyaruko/snake-in-led/sqlite"
)

// AutoplayID 启动时自动演示的会话
const AutoplayID = "autoplay"

func main() {
	// Initialize the configuration
	cfg, err := config.LoadConfig("./config.json")
	if err != nil {
		log.Fatalf("Failed to load config: %s", err)
	}
	EnsureFoldersExist(cfg.BoardDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 载入棋盘到内存
	boards := memboard.NewCatalog(cfg.BoardImageCell)
	if err := boards.LoadDir(cfg.BoardDir); err != nil {
		log.Fatalf("Failed to load boards from %s: %s", cfg.BoardDir, err)
	}
	log.Printf("Loaded boards: %v", boards.Names())
	// 检测并热更新到内存
	if err := boards.Watch(ctx, cfg.BoardDir); err != nil {
		log.Printf("Board hot reload disabled: %s", err)
	}

	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database %s: %s", cfg.DBPath, err)
	}
	defer db.Close()

	svc := api.NewService(ctx, db, boards, session.NewManager(), api.Options{
		DefaultBoard:  cfg.DefaultBoard,
		DefaultAgent:  cfg.DefaultAgent,
		InitialLength: cfg.InitialLength,
		AgentTick:     cfg.AgentTick(),
		PlayerTick:    cfg.PlayerTick(),
		EndSequence:   cfg.EndSequence(),
		Seed:          cfg.Seed,
		PersistEvery:  100,
	})
	n, err := svc.RestoreSessions()
	if err != nil {
		log.Printf("Failed to restore sessions: %s", err)
	}
	log.Printf("Restored %d sessions", n)

	if cfg.Autoplay {
		startAutoplay(svc)
	}

	router := gin.Default()
	api.Register(router, svc)
	// 从配置单例读取端口 监听
	if err := router.Run(":" + config.GetConfigValue("port").(string)); err != nil {
		log.Fatalf("Server stopped: %s", err)
	}
}

// startAutoplay 复用上次的演示会话，没有就新开一局
func startAutoplay(svc *api.Service) {
	sess, err := svc.Session(AutoplayID)
	if errors.Is(err, session.ErrNotFound) {
		sess, err = svc.CreateSession(AutoplayID, "", session.ModeAgent, "")
	}
	if err != nil {
		log.Printf("Autoplay disabled: %s", err)
		return
	}
	svc.StartLive(sess)
	log.Printf("Autoplay session %s running on board %s", sess.ID, sess.Board)
}

// EnsureFoldersExist 检查并创建必需的文件夹
func EnsureFoldersExist(folders ...string) {
	for _, folder := range folders {
		if _, err := os.Stat(folder); os.IsNotExist(err) {
			// 文件夹不存在，尝试创建它
			err := os.MkdirAll(folder, 0755)
			if err != nil {
				log.Fatalf("Failed to create %s directory: %s", folder, err)
			}
			log.Printf("Created %s directory", folder)
		} else {
			// 文件夹已存在
			log.Printf("%s directory already exists", folder)
		}
	}
}
