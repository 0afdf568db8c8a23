package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"rocketball/internal/config"
	"rocketball/internal/metrics"
	"rocketball/internal/server"
)

func main() {
	// 命令行参数
	configPath := flag.String("config", "", "配置文件路径（留空用默认值加环境变量）")
	addr := flag.String("addr", "", "覆盖监听地址")
	proto := flag.String("proto", "", "覆盖监听协议 (tcp|kcp|ws)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *proto != "" {
		cfg.Proto = *proto
	}

	log := newLogger(cfg.LogLevel)

	log.Info().Msg("========================================")
	log.Info().Msg("  Rocketball 权威服务器")
	log.Info().Msg("========================================")
	log.Info().Str("addr", cfg.Addr).Str("proto", cfg.Proto).Msg("监听配置")
	log.Info().Int("tick_rate", cfg.TickRate).Int("buffer", cfg.BufferCapacity).Msg("模拟配置")
	log.Info().Msg("按 Ctrl+C 停止服务器")

	gameServer := server.NewGameServer(cfg, log, metrics.Nop())

	go func() {
		if err := gameServer.Start(); err != nil {
			log.Fatal().Err(err).Msg("服务器启动失败")
		}
	}()

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("正在关闭服务器")
	gameServer.Shutdown()
	log.Info().Msg("服务器已关闭，再见")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(lvl).
		With().Timestamp().Logger()
}
