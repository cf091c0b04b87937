package internal

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 服務設定
type Config struct {
	Server ServerConfig `yaml:"server"`
	Rooms  RoomsConfig  `yaml:"rooms"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig HTTP 伺服器設定
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RoomsConfig 房間管理設定
type RoomsConfig struct {
	MaxRooms            int           `yaml:"max_rooms"`
	RoomCleanupInterval time.Duration `yaml:"room_cleanup_interval"`
	ReconnectionTimeout time.Duration `yaml:"reconnection_timeout"`
	SweepInterval       time.Duration `yaml:"sweep_interval"`
	AllowReconnection   bool          `yaml:"allow_reconnection"`
}

// LogConfig 日誌設定
type LogConfig struct {
	Level  string `yaml:"level"`  // debug / info / warn / error
	Format string `yaml:"format"` // text / json
}

// DefaultConfig 預設設定
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Rooms: RoomsConfig{
			MaxRooms:            1000,
			RoomCleanupInterval: 30 * time.Minute,
			ReconnectionTimeout: 5 * time.Minute,
			SweepInterval:       time.Minute,
			AllowReconnection:   true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig 讀取設定檔。路徑為空時使用預設值；
// 檔案只需覆寫想改的欄位。
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("讀取設定檔失敗: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("解析設定檔失敗: %w", err)
	}

	return cfg, nil
}

// UnmarshalYAML 以 "15s"、"5m" 這類字串解析時間欄位。
// 指標欄位區分「未設定」與「設為零值」，未出現的欄位保留原值。
func (c *ServerConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Port         *int   `yaml:"port"`
		ReadTimeout  string `yaml:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.Port != nil {
		c.Port = *raw.Port
	}
	if err := setDuration(&c.ReadTimeout, raw.ReadTimeout); err != nil {
		return err
	}
	return setDuration(&c.WriteTimeout, raw.WriteTimeout)
}

// UnmarshalYAML 同上
func (c *RoomsConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		MaxRooms            *int   `yaml:"max_rooms"`
		RoomCleanupInterval string `yaml:"room_cleanup_interval"`
		ReconnectionTimeout string `yaml:"reconnection_timeout"`
		SweepInterval       string `yaml:"sweep_interval"`
		AllowReconnection   *bool  `yaml:"allow_reconnection"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.MaxRooms != nil {
		c.MaxRooms = *raw.MaxRooms
	}
	if raw.AllowReconnection != nil {
		c.AllowReconnection = *raw.AllowReconnection
	}
	if err := setDuration(&c.RoomCleanupInterval, raw.RoomCleanupInterval); err != nil {
		return err
	}
	if err := setDuration(&c.ReconnectionTimeout, raw.ReconnectionTimeout); err != nil {
		return err
	}
	return setDuration(&c.SweepInterval, raw.SweepInterval)
}

// setDuration 解析非空的時間字串並寫入目標
func setDuration(dst *time.Duration, s string) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("無效的時間格式 %q: %w", s, err)
	}
	*dst = d
	return nil
}

// ManagerConfig 轉換為房間管理器設定
func (c RoomsConfig) ManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxRooms:            c.MaxRooms,
		RoomCleanupInterval: c.RoomCleanupInterval,
		ReconnectionTimeout: c.ReconnectionTimeout,
		SweepInterval:       c.SweepInterval,
		AllowReconnection:   c.AllowReconnection,
	}
}
