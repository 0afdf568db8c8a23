package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"rocketball/internal/client"
	"rocketball/internal/config"
	"rocketball/internal/metrics"
	"rocketball/pkg/core"
)

// scriptedInput 无界面客户端的脚本输入：全油门蛇形行驶，周期性跳一下
type scriptedInput struct {
	start time.Time
}

func (s *scriptedInput) Sample() core.AxisState {
	elapsed := time.Since(s.start).Seconds()
	return core.AxisState{
		Throttle: 1,
		Steer:    math.Sin(elapsed * 0.8),
		Jump:     math.Mod(elapsed, 4) < 0.15,
	}
}

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	addr := flag.String("addr", "", "覆盖服务器地址")
	proto := flag.String("proto", "", "覆盖协议 (tcp|kcp|ws)")
	name := flag.String("name", "headless", "玩家名")
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
	log.Info().Msg("  Rocketball 无界面客户端")
	log.Info().Msg("========================================")

	gc := client.NewGameClient(cfg, &scriptedInput{start: time.Now()}, log, metrics.Nop())
	if err := gc.Connect(*name); err != nil {
		log.Fatal().Err(err).Msg("连接失败")
	}

	go func() {
		if err := gc.Run(); err != nil {
			log.Fatal().Err(err).Msg("客户端异常退出")
		}
	}()

	// 周期性打印本地预测状态，观察预测与对账是否平稳
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			car := gc.LocalCar()
			log.Info().
				Int64("tick", car.Tick).
				Float64("x", car.Position.X).
				Float64("y", car.Position.Y).
				Float64("z", car.Position.Z).
				Str("state", car.SimState.String()).
				Msg("本地车状态")
			if ball, ok := gc.Ball(); ok {
				log.Info().
					Float64("x", ball.Position.X).
					Float64("y", ball.Position.Y).
					Float64("z", ball.Position.Z).
					Msg("球状态")
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("正在关闭客户端")
	gc.Close()
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
