package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

type Config struct {
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	Host                 string        `env:"HOST,default=0.0.0.0"`
	HTTPPort             int           `env:"HTTP_PORT,default=8080"`
	GRPCPort             int           `env:"GRPC_PORT,default=9090"`
	DebugPort            int           `env:"DEBUG_PORT,default=8081"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	UploadDir            string        `env:"UPLOAD_DIR,default=./uploads"`
	MaxUploadSize        int64         `env:"MAX_UPLOAD_SIZE,default=10485760"`
	CommandBufferSize    int           `env:"COMMAND_BUFFER_SIZE,default=1024"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	PongWait             time.Duration `env:"PONG_WAIT,default=60s"`
	MaxFrameSize         int64         `env:"MAX_FRAME_SIZE,default=65536"`
	AllowedOrigins       string        `env:"ALLOWED_ORIGINS"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=1s"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=30s"`
	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	RequireIdentifyToken bool          `env:"REQUIRE_IDENTIFY_TOKEN,default=false"`
	DeliveryDedup        bool          `env:"DELIVERY_DEDUP,default=false"`
	DefaultPageLimit     int           `env:"DEFAULT_PAGE_LIMIT,default=50"`
	MaxPageLimit         int           `env:"MAX_PAGE_LIMIT,default=100"`
	MaxMessageLength     int           `env:"MAX_MESSAGE_LENGTH,default=4000"`
	CensoredWords        string        `env:"CENSORED_WORDS"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
	AdminName            string        `env:"ADMIN_NAME,default=admin"`
	AdminEmail           string        `env:"ADMIN_EMAIL"`
	AdminPassword        string        `env:"ADMIN_PASSWORD"`
}

func (c Config) CharacterRune() (rune, error) {
	r := []rune(c.CharReplacement)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			c.CharReplacement,
		)
	}
	return r[0], nil
}

func (c Config) CensoredWordList() []string {
	return splitList(c.CensoredWords)
}

func (c Config) AllowedOriginList() []string {
	return splitList(c.AllowedOrigins)
}

func (c Config) httpAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

func (c Config) grpcAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GRPCPort)
}

func splitList(raw string) []string {
	items := lo.Map(strings.Split(raw, ","), func(item string, _ int) string {
		return strings.TrimSpace(item)
	})
	return lo.Compact(items)
}
