package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"rocketball/pkg/core"
)

// Config 全部可调参数
// 默认值 < 配置文件 < 环境变量（前缀 ROCKETBALL_）逐层覆盖。
type Config struct {
	Addr  string `mapstructure:"addr"`
	Proto string `mapstructure:"proto"` // tcp | kcp | ws

	LogLevel string `mapstructure:"log_level"`

	// 模拟
	TickRate       int `mapstructure:"tick_rate"`
	BufferCapacity int `mapstructure:"buffer_capacity"`
	MaxRTTTicks    int `mapstructure:"max_rtt_ticks"` // 预期最坏往返 tick 距离

	// 发送节奏
	InputSendDivisor int `mapstructure:"input_send_divisor"` // 输入发送频率 = tick_rate / divisor
	InputWindow      int `mapstructure:"input_window"`       // 每次重发的输入冗余窗口

	// 快照节奏：owner 单播走高频，非 owner 广播走低频。
	// 广播间隔越小越平滑，但精简快照要发给所有非 owner，
	// 上行带宽大致按 1/interval 增长；默认 6 tick（60Hz 下 10Hz）偏向省带宽，
	// 球的 Hermite 插值与外推就是按这个间隙长度设计的。
	OwnerSnapshotInterval   int `mapstructure:"owner_snapshot_interval"`
	RemoteBroadcastInterval int `mapstructure:"remote_broadcast_interval"`

	// 对账
	PositionTolerance float64 `mapstructure:"position_tolerance"` // 米
	RotationTolerance float64 `mapstructure:"rotation_tolerance"` // 弧度
	HardSnapThreshold float64 `mapstructure:"hard_snap_threshold"`
	BlendFactor       float64 `mapstructure:"blend_factor"` // 向纠正结果靠拢的比例

	// 远端复制
	InterpMinDuration float64 `mapstructure:"interp_min_duration"` // 插值时长下限（秒）
	ExtrapMaxDuration float64 `mapstructure:"extrap_max_duration"` // 外推时长上限（秒）

	// 会话
	JWTSecret string `mapstructure:"jwt_secret"`
}

// Load 读取配置；path 为空时仅用默认值加环境变量
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("addr", ":7788")
	v.SetDefault("proto", "kcp")
	v.SetDefault("log_level", "info")

	v.SetDefault("tick_rate", core.TickRate)
	v.SetDefault("buffer_capacity", core.DefaultRingCapacity)
	v.SetDefault("max_rtt_ticks", 120)

	v.SetDefault("input_send_divisor", 2)
	v.SetDefault("input_window", 8)

	v.SetDefault("owner_snapshot_interval", 2)
	v.SetDefault("remote_broadcast_interval", 6)

	v.SetDefault("position_tolerance", 0.5)
	v.SetDefault("rotation_tolerance", 0.12)
	v.SetDefault("hard_snap_threshold", 3.0)
	v.SetDefault("blend_factor", 0.7)

	v.SetDefault("interp_min_duration", 0.05)
	v.SetDefault("extrap_max_duration", 0.25)

	v.SetDefault("jwt_secret", "")

	v.SetEnvPrefix("ROCKETBALL")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置不变量
func (c *Config) Validate() error {
	if c.TickRate <= 0 {
		return errors.New("tick_rate 必须为正")
	}
	if c.InputSendDivisor <= 0 {
		return errors.New("input_send_divisor 必须为正")
	}
	if c.OwnerSnapshotInterval <= 0 || c.RemoteBroadcastInterval <= 0 {
		return errors.New("快照间隔必须为正")
	}
	if c.BlendFactor < 0 || c.BlendFactor > 1 {
		return errors.New("blend_factor 必须在 [0,1] 内")
	}
	// 容量不变量：环形缓冲区必须覆盖最坏往返 tick 距离并留出余量，
	// 超出缓冲区跨度的延迟不属于可恢复范围。
	if c.BufferCapacity < c.MaxRTTTicks*2 {
		return fmt.Errorf("buffer_capacity(%d) 必须不小于 max_rtt_ticks(%d) 的两倍",
			c.BufferCapacity, c.MaxRTTTicks)
	}
	return nil
}

// Step 固定模拟步长
func (c *Config) Step() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// StepSeconds 固定模拟步长（秒）
func (c *Config) StepSeconds() float64 {
	return 1.0 / float64(c.TickRate)
}
